package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/internal/ingest"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/store"
)

// maxBodyBytes caps request bodies on the batch endpoints.
const maxBodyBytes = 32 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  "Serves batch dedupe, scoring and run endpoints plus lookups of stored records, merge history and scores.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := context.WithCancel(cmd.Context())
		defer stop()

		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		go store.RunSweeper(ctx, env.KV, time.Duration(cfg.Cache.CleanupMinutes)*time.Minute)

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           newRouter(env, cfg.Server.AllowedOrigins, cfg.Batch.MaxRecords),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       2 * time.Minute,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("starting server", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err, ok := <-errCh:
			if ok {
				return eris.Wrap(err, "server")
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP server port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

// api serves the HTTP endpoints over an initialized env.
type api struct {
	env        *appEnv
	maxRecords int
}

// newRouter builds the HTTP handler.
func newRouter(env *appEnv, allowedOrigins []string, maxRecords int) http.Handler {
	a := &api{env: env, maxRecords: maxRecords}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", a.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/dedupe", a.handleDedupe)
		r.Post("/score", a.handleScore)
		r.Post("/run", a.handleRun)
		r.Get("/records/{id}", a.handleRecord)
		r.Get("/records/{id}/history", a.handleHistory)
		r.Get("/scores/{id}", a.handleScores)
	})
	return r
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleDedupe(w http.ResponseWriter, r *http.Request) {
	recs, ok := a.readBatch(w, r)
	if !ok {
		return
	}
	res, err := a.env.Dedupe.Run(r.Context(), recs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleScore(w http.ResponseWriter, r *http.Request) {
	recs, ok := a.readBatch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.env.Pipeline.Score(r.Context(), recs))
}

func (a *api) handleRun(w http.ResponseWriter, r *http.Request) {
	recs, ok := a.readBatch(w, r)
	if !ok {
		return
	}
	res, err := a.env.Pipeline.Run(r.Context(), recs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRecord returns the canonical record for id, following merges.
func (a *api) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, rec, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requested_id": id, "record": rec})
}

func (a *api) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hist, err := a.env.Repo.MergeHistory(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record_id": id, "merges": hist})
}

// handleScores returns the cached quality and priority scores of the
// canonical record for id.
func (a *api) handleScores(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := a.lookup(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	p, err := a.env.Repo.GetPriority(ctx, rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, eris.Errorf("no score cached for %s", rec.ID))
		return
	}
	q, err := a.env.Repo.GetQuality(ctx, rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record_id": rec.ID, "quality": q, "priority": p})
}

func (a *api) lookup(w http.ResponseWriter, r *http.Request) (string, *model.BusinessRecord, bool) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	canonical, err := a.env.Repo.Resolve(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return id, nil, false
	}
	rec, err := a.env.Repo.GetRecord(ctx, canonical)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return id, nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, eris.Errorf("record %s not found", id))
		return id, nil, false
	}
	return id, rec, true
}

// readBatch decodes the request body using its content type: JSON array
// (default), NDJSON, CSV or TSV.
func (a *api) readBatch(w http.ResponseWriter, r *http.Request) ([]*model.BusinessRecord, bool) {
	format := ingest.FormatJSON
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			writeError(w, http.StatusUnsupportedMediaType, eris.Wrap(err, "parse content type"))
			return nil, false
		}
		switch mt {
		case "application/json":
		case "application/x-ndjson", "application/jsonl":
			format = ingest.FormatJSONL
		case "text/csv":
			format = ingest.FormatCSV
		case "text/tab-separated-values":
			format = ingest.FormatTSV
		default:
			writeError(w, http.StatusUnsupportedMediaType, eris.Errorf("unsupported content type %q", mt))
			return nil, false
		}
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	recs, err := ingest.Read(r.Context(), body, format, a.maxRecords)
	if err != nil {
		status := http.StatusBadRequest
		var mbe *http.MaxBytesError
		if eris.Is(err, ingest.ErrTooManyRecords) || errors.As(err, &mbe) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err)
		return nil, false
	}
	return recs, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
