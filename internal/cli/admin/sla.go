package admin

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/config"
	"github.com/smartclaim/triage/internal/sla"
	"github.com/smartclaim/triage/internal/storage"
)

// now is replaced in tests.
var now = time.Now

func SLACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "Predict resolution times and manage the SLA model",
	}

	cmd.AddCommand(slaPredictCmd())
	cmd.AddCommand(slaUploadModelCmd())

	return cmd
}

type slaPredictFlags struct {
	category       string
	priority       string
	visualSeverity string
	review         bool
	attachments    bool
	sources        int
	descLength     int
	workload       float64
	model          string
}

func slaPredictCmd() *cobra.Command {
	var f slaPredictFlags

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the resolution time of a ticket",
		Long: `Predict the resolution time of a ticket from its triage attributes.

Without --model the prediction uses the rule tables only. --model accepts a
local file or an s3://bucket/key URI (S3 settings come from CLAIMD_S3_*).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSLAPredict(cmd, f, now())
		},
	}

	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Ticket category (safety, quality, maintenance, ...)")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", "", "Ticket priority (low, medium, high, critical)")
	cmd.Flags().StringVar(&f.visualSeverity, "visual-severity", "", "Severity from visual evidence (low, medium, high, critical)")
	cmd.Flags().BoolVar(&f.review, "review", false, "Ticket requires human review")
	cmd.Flags().BoolVar(&f.attachments, "attachments", false, "Ticket has attachments")
	cmd.Flags().IntVar(&f.sources, "sources", 1, "Number of evidence sources")
	cmd.Flags().IntVar(&f.descLength, "description-length", 0, "Description length in characters")
	cmd.Flags().Float64Var(&f.workload, "workload", -1, "Department workload between 0 and 1")
	cmd.Flags().StringVar(&f.model, "model", "", "Trained model file or s3:// URI")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("priority")
	addOutputFlag(cmd)

	return cmd
}

func runSLAPredict(cmd *cobra.Command, f slaPredictFlags, at time.Time) error {
	in := sla.Input{
		Category:            f.category,
		Priority:            f.priority,
		DescriptionLength:   f.descLength,
		HasAttachments:      f.attachments,
		HasVisualEvidence:   f.visualSeverity != "",
		VisualSeverity:      f.visualSeverity,
		SourceCount:         f.sources,
		RequiresHumanReview: f.review,
	}
	if f.workload >= 0 {
		in.DepartmentWorkload = &f.workload
	}
	if err := in.Validate(); err != nil {
		return err
	}

	engine, err := loadCLIEngine(cmd.Context(), f.model)
	if err != nil {
		return err
	}

	p := engine.Predict(in, at)
	return printResult(cmd, p, func(w io.Writer) {
		fmt.Fprintf(w, "Predicted resolution: %.1f hours (deadline %s)\n", p.PredictedHours, p.Deadline.Format(time.RFC3339))
		fmt.Fprintf(w, "Breach probability:   %.1f%% (%s risk)\n", p.BreachProbability*100, p.RiskLevel)
		fmt.Fprintf(w, "Confidence:           %.2f\n", p.Confidence)
		fmt.Fprintln(w, p.Explanation)
	})
}

func loadCLIEngine(ctx context.Context, path string) (*sla.Engine, error) {
	if path == "" {
		return sla.NewEngine(nil, nil, nil), nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var objects sla.ObjectGetter
	if storage.IsURI(path) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		s3, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		objects = s3
	}

	model, err := sla.LoadModel(ctx, path, objects)
	if err != nil {
		return nil, err
	}
	return sla.NewEngine(nil, sla.NewModelEngine(model, zap.NewNop()), nil), nil
}

func slaUploadModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload-model <file> <s3://bucket/key>",
		Short: "Validate a trained model and publish it to object storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read model: %w", err)
			}
			model, err := sla.ParseModel(data)
			if err != nil {
				return err
			}

			bucket, key, err := storage.ParseURI(args[1])
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			s3, err := newS3Client(ctx, cfg)
			if err != nil {
				return err
			}
			if err := s3.EnsureBucket(ctx, bucket); err != nil {
				return fmt.Errorf("failed to ensure bucket %s: %w", bucket, err)
			}
			etag, err := s3.PutObject(ctx, bucket, key, "application/json", data)
			if err != nil {
				return fmt.Errorf("failed to upload model: %w", err)
			}

			name := strings.TrimSpace(model.Name)
			if name == "" {
				name = "unnamed"
			}
			result := map[string]any{"name": name, "uri": args[1], "coefficients": len(model.Coefficients), "etag": etag}
			return printResult(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "Uploaded model %s (%d coefficients) to %s, etag %s\n", name, len(model.Coefficients), args[1], etag)
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}
