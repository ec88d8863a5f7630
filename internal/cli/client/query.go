package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// QueryRequest mirrors the /query body. UserContext is only needed against a
// server that runs without token auth.
type QueryRequest struct {
	Query          string       `json:"query"`
	UserContext    *UserContext `json:"user_context,omitempty"`
	TopK           int          `json:"top_k,omitempty"`
	Rerank         *bool        `json:"rerank,omitempty"`
	IncludeSources *bool        `json:"include_sources,omitempty"`
}

type UserContext struct {
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
}

type QuerySource struct {
	TicketID     string  `json:"ticket_id"`
	TicketNumber string  `json:"ticket_number,omitempty"`
	Category     string  `json:"category,omitempty"`
	ChunkType    string  `json:"chunk_type"`
	Score        float32 `json:"relevance_score"`
}

type QueryResponse struct {
	Answer             string        `json:"answer"`
	Sources            []QuerySource `json:"sources"`
	ContextUsed        bool          `json:"context_used"`
	NumChunksRetrieved int           `json:"num_chunks_retrieved"`
}

func QueryCmd() *cobra.Command {
	var (
		topK      int
		noRerank  bool
		noSources bool
		asUser    string
		asRole    string
		asDept    string
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question about the tickets you can see",
		Long:  "Runs a retrieval-augmented query. Results are limited to the tickets your role may access.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := QueryRequest{Query: strings.Join(args, " "), TopK: topK}
			if noRerank {
				req.Rerank = boolPtr(false)
			}
			if noSources {
				req.IncludeSources = boolPtr(false)
			}
			if asUser != "" {
				req.UserContext = &UserContext{UserID: asUser, Role: asRole, DepartmentID: asDept}
			}
			return runQuery(cmd.Context(), cmd.OutOrStdout(), api, req, outputJSON(cmd))
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (server default when 0)")
	cmd.Flags().BoolVar(&noRerank, "no-rerank", false, "Skip LLM reranking")
	cmd.Flags().BoolVar(&noSources, "no-sources", false, "Omit the source list")
	cmd.Flags().StringVar(&asUser, "user", "", "User id (only for servers without token auth)")
	cmd.Flags().StringVar(&asRole, "role", "worker", "Role for --user")
	cmd.Flags().StringVar(&asDept, "department", "", "Department for --user")

	return cmd
}

func runQuery(ctx context.Context, w io.Writer, api *APIClient, req QueryRequest, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var resp QueryResponse
	if err := api.Decode(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if asJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintln(w, string(output))
		return nil
	}

	fmt.Fprintln(w, resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Fprintf(w, "\n%s\nSources:\n", strings.Repeat("-", 40))
		for i, s := range resp.Sources {
			label := s.TicketNumber
			if label == "" {
				label = s.TicketID
			}
			fmt.Fprintf(w, "%d. %s [%s] (%.2f)\n", i+1, label, s.ChunkType, s.Score)
		}
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }

func outputJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("output")
	return v
}
