package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// SLARequest is the body of POST /sla/predict.
type SLARequest struct {
	Category            string   `json:"category"`
	Priority            string   `json:"priority"`
	HasVisualEvidence   bool     `json:"has_visual_evidence,omitempty"`
	VisualSeverity      string   `json:"visual_severity,omitempty"`
	RequiresHumanReview bool     `json:"requires_human_review,omitempty"`
	SourceCount         int      `json:"source_count,omitempty"`
	DepartmentWorkload  *float64 `json:"department_workload,omitempty"`
}

type SLAPrediction struct {
	PredictedHours    float64 `json:"predicted_resolution_hours"`
	BreachProbability float64 `json:"breach_probability"`
	RiskLevel         string  `json:"risk_level"`
	Explanation       string  `json:"explanation"`
	Confidence        float64 `json:"confidence"`
	Deadline          string  `json:"sla_deadline"`
}

func SLACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "Ask the server for SLA predictions",
	}
	cmd.AddCommand(slaPredictCmd())
	return cmd
}

func slaPredictCmd() *cobra.Command {
	var (
		req      SLARequest
		workload float64
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a ticket's resolution time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			req.HasVisualEvidence = req.VisualSeverity != ""
			if workload >= 0 {
				req.DepartmentWorkload = &workload
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			var p SLAPrediction
			if err := api.Decode(ctx, http.MethodPost, "/sla/predict", req, &p); err != nil {
				return fmt.Errorf("sla prediction failed: %w", err)
			}

			w := cmd.OutOrStdout()
			if outputJSON(cmd) {
				output, _ := json.MarshalIndent(p, "", "  ")
				fmt.Fprintln(w, string(output))
				return nil
			}
			fmt.Fprintf(w, "%.1f hours, %s risk (breach %.1f%%), due %s\n",
				p.PredictedHours, p.RiskLevel, p.BreachProbability*100, p.Deadline)
			fmt.Fprintln(w, p.Explanation)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Category, "category", "c", "", "Ticket category")
	cmd.Flags().StringVarP(&req.Priority, "priority", "p", "", "Ticket priority")
	cmd.Flags().StringVar(&req.VisualSeverity, "visual-severity", "", "Severity from visual evidence")
	cmd.Flags().BoolVar(&req.RequiresHumanReview, "review", false, "Ticket requires human review")
	cmd.Flags().IntVar(&req.SourceCount, "sources", 0, "Number of evidence sources")
	cmd.Flags().Float64Var(&workload, "workload", -1, "Department workload between 0 and 1")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("priority")

	return cmd
}
