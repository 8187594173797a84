package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/orgmatch/internal/model"
)

var scoreFlags batchFlags

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score records for data quality and priority without deduplicating",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, "score", &scoreFlags, func(ctx context.Context, env *appEnv, recs []*model.BusinessRecord) error {
			res := env.Pipeline.Score(ctx, recs)
			return scoreFlags.write(cmd, res, res)
		})
	},
}

func init() {
	scoreFlags.register(scoreCmd)
	rootCmd.AddCommand(scoreCmd)
}
