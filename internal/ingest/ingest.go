// Package ingest loads business records from JSON, JSON Lines, CSV and XLSX
// files.
package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/internal/model"
)

// Format is an input file format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatXLSX  Format = "xlsx"
)

// ErrTooManyRecords is returned when an input exceeds Options.MaxRecords.
var ErrTooManyRecords = eris.New("ingest: too many records")

// Options configures a read.
type Options struct {
	Format     Format // detected from the file extension when empty
	MaxRecords int    // 0 = unlimited
	Sheet      string // XLSX sheet name; first sheet when empty
}

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".csv":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("ingest: cannot detect format of %q", path)
}

// ReadFile loads records from path.
func ReadFile(ctx context.Context, path string, opts Options) ([]*model.BusinessRecord, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}

	if format == FormatXLSX {
		rowCh, errCh := StreamXLSX(ctx, path, XLSXOptions{SheetName: opts.Sheet})
		return collectTable(rowCh, errCh, opts.MaxRecords)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	recs, err := Read(ctx, f, format, opts.MaxRecords)
	if err != nil {
		return nil, err
	}
	zap.L().Info("ingest: loaded records",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("records", len(recs)),
	)
	return recs, nil
}

// Read loads records from r. XLSX needs a file path; use ReadFile.
func Read(ctx context.Context, r io.Reader, format Format, maxRecords int) ([]*model.BusinessRecord, error) {
	switch format {
	case FormatJSON:
		ch, errCh := DecodeJSONArray[*model.BusinessRecord](ctx, r)
		return collect(ch, errCh, maxRecords)
	case FormatJSONL:
		ch, errCh := DecodeJSONLines[*model.BusinessRecord](ctx, r)
		return collect(ch, errCh, maxRecords)
	case FormatCSV:
		rowCh, errCh := StreamCSV(ctx, r, CSVOptions{TrimSpace: true, LazyQuotes: true})
		return collectTable(rowCh, errCh, maxRecords)
	case FormatTSV:
		rowCh, errCh := StreamCSV(ctx, r, CSVOptions{Delimiter: '\t', TrimSpace: true, LazyQuotes: true})
		return collectTable(rowCh, errCh, maxRecords)
	case FormatXLSX:
		return nil, eris.New("ingest: xlsx input must be read from a file")
	}
	return nil, eris.Errorf("ingest: unsupported format %q", format)
}

func collect(ch <-chan *model.BusinessRecord, errCh <-chan error, maxRecords int) ([]*model.BusinessRecord, error) {
	var (
		recs    []*model.BusinessRecord
		tooMany bool
	)
	for rec := range ch {
		if maxRecords > 0 && len(recs) >= maxRecords {
			tooMany = true
			continue
		}
		recs = append(recs, rec)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrap(err, "ingest: decode")
		}
	}
	if tooMany {
		return nil, eris.Wrapf(ErrTooManyRecords, "limit %d", maxRecords)
	}
	return recs, nil
}

// collectTable turns rows into records. The first non-blank row is the
// header.
func collectTable(rowCh <-chan []string, errCh <-chan error, maxRecords int) ([]*model.BusinessRecord, error) {
	var (
		h       header
		recs    []*model.BusinessRecord
		rowErr  error
		tooMany bool
		line    int
	)
	for row := range rowCh {
		line++
		if rowErr != nil || tooMany || blank(row) {
			continue
		}
		if h == nil {
			h = parseHeader(row)
			if len(h) == 0 {
				rowErr = eris.New("ingest: header has no recognized columns")
			}
			continue
		}
		if maxRecords > 0 && len(recs) >= maxRecords {
			tooMany = true
			continue
		}
		rec, err := rowToRecord(h, row)
		if err != nil {
			rowErr = eris.Wrapf(err, "ingest: row %d", line)
			continue
		}
		recs = append(recs, rec)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read rows")
		}
	}
	if rowErr != nil {
		return nil, rowErr
	}
	if tooMany {
		return nil, eris.Wrapf(ErrTooManyRecords, "limit %d", maxRecords)
	}
	return recs, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
