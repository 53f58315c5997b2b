package main

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/model"
)

var enrichIDs []int64

// batchExecutor is the part of the coordinator the commands depend on.
type batchExecutor interface {
	Execute(ctx context.Context, leadIDs []int64) *model.BatchReport
}

var enrichCmd = &cobra.Command{
	Use:     "enrich",
	Short:   "Enrich phone numbers for a set of leads",
	Example: `  lead-enrich enrich --ids 1,2,3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		return runEnrich(ctx, env.Coordinator, enrichIDs, cmd.OutOrStdout())
	},
}

// runEnrich executes one batch and writes the report as JSON to w. A report
// whose batch input failed is written and also returned as an error.
func runEnrich(ctx context.Context, exec batchExecutor, ids []int64, w io.Writer) error {
	report := exec.Execute(ctx, ids)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return eris.Wrap(err, "enrich: encode report")
	}

	zap.L().Info("enrich complete",
		zap.String("batch_id", report.BatchID),
		zap.Int("processed", report.ProcessedCount),
		zap.Int("errors", len(report.Errors)),
	)

	if !report.Success {
		msg := "batch failed"
		if len(report.Errors) > 0 {
			msg = report.Errors[0].Error
		}
		return eris.New(msg)
	}
	return nil
}

func init() {
	enrichCmd.Flags().Int64SliceVar(&enrichIDs, "ids", nil, "comma-separated lead ids")
	_ = enrichCmd.MarkFlagRequired("ids")
	rootCmd.AddCommand(enrichCmd)
}
