package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/pipeline"
)

var dedupeFlags batchFlags

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find and merge duplicate organization records",
	Long:  "Reads a batch of records, detects duplicate pairs, auto-merges confident matches and queues the rest for review.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, "dedupe", &dedupeFlags, func(ctx context.Context, env *appEnv, recs []*model.BusinessRecord) error {
			batch, err := env.Dedupe.Run(ctx, recs)
			if err != nil {
				return err
			}
			res := &pipeline.Result{RunID: batch.RunID, Dedupe: batch, Errors: batch.Errors, Canceled: batch.Canceled}
			return dedupeFlags.write(cmd, res, batch)
		})
	},
}

func init() {
	dedupeFlags.register(dedupeCmd)
	rootCmd.AddCommand(dedupeCmd)
}
