package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/orgmatch/internal/model"
)

var runFlags batchFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deduplicate records, then score every canonical record",
	Long:  "Runs identity resolution over the input batch and rates each surviving record for data quality and outreach priority, ranked by tier.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, "run", &runFlags, func(ctx context.Context, env *appEnv, recs []*model.BusinessRecord) error {
			res, err := env.Pipeline.Run(ctx, recs)
			if err != nil {
				return err
			}
			return runFlags.write(cmd, res, res)
		})
	},
}

func init() {
	runFlags.register(runCmd)
	rootCmd.AddCommand(runCmd)
}
