package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/internal/ingest"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/pipeline"
)

// batchFlags are shared by the dedupe, score and run commands.
type batchFlags struct {
	input  string
	sheet  string
	output string
	format string
	top    int
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "input file (.json, .jsonl, .csv, .tsv, .xlsx)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "worksheet name for .xlsx input (default: first sheet)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().StringVar(&f.format, "format", "report", "output format: report or json")
	cmd.Flags().IntVar(&f.top, "top", 25, "ranked records listed in the report (0 = all)")
	_ = cmd.MarkFlagRequired("input")
}

func (f *batchFlags) validate() error {
	switch f.format {
	case "report", "json":
		return nil
	default:
		return eris.Errorf("unknown --format %q (want report or json)", f.format)
	}
}

func (f *batchFlags) readRecords(ctx context.Context, maxRecords int) ([]*model.BusinessRecord, error) {
	recs, err := ingest.ReadFile(ctx, f.input, ingest.Options{MaxRecords: maxRecords, Sheet: f.sheet})
	if err != nil {
		return nil, err
	}
	zap.L().Info("loaded records", zap.String("input", f.input), zap.Int("count", len(recs)))
	return recs, nil
}

// write renders res as a report or as indented JSON of v.
func (f *batchFlags) write(cmd *cobra.Command, res *pipeline.Result, v any) (err error) {
	var w io.Writer = cmd.OutOrStdout()
	if f.output != "" {
		file, cerr := os.Create(f.output)
		if cerr != nil {
			return eris.Wrapf(cerr, "create %s", f.output)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = eris.Wrapf(cerr, "close %s", f.output)
			}
		}()
		w = file
	}

	if f.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err = fmt.Fprint(w, pipeline.FormatReport(res, f.top))
	return err
}

// runBatch is the shared body of the batch commands: load config-scoped
// dependencies, read the input and hand the records to fn.
func runBatch(cmd *cobra.Command, mode string, flags *batchFlags, fn func(ctx context.Context, env *appEnv, recs []*model.BusinessRecord) error) error {
	if err := flags.validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	env, err := initEnv(ctx, cfg, mode)
	if err != nil {
		return err
	}
	defer env.Close()

	recs, err := flags.readRecords(ctx, cfg.Batch.MaxRecords)
	if err != nil {
		return err
	}
	return fn(ctx, env, recs)
}
