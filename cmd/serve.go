package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/batch"
	"github.com/sells-group/lead-enrich/internal/resilience"
)

const maxRequestBody = 1 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for phone enrichment requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Coordinator, env.Breakers),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type enrichRequest struct {
	LeadIDs []json.Number `json:"leadIds"`
}

// buildRouter wires the HTTP surface. breakers may be nil.
func buildRouter(exec batchExecutor, breakers *resilience.Breakers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		providers := map[string]string{}
		if breakers != nil {
			for name, state := range breakers.States() {
				providers[name] = state.String()
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"providers": providers,
		})
	})

	r.Post("/leads/enrich-phone", func(w http.ResponseWriter, req *http.Request) {
		var body enrichRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody))
		if err := dec.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Request body is required and must be valid JSON")
			return
		}

		ids, err := parseLeadIDs(body.LeadIDs)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		report := exec.Execute(req.Context(), ids)
		zap.L().Info("enrich-phone request complete",
			zap.String("request_id", middleware.GetReqID(req.Context())),
			zap.String("batch_id", report.BatchID),
			zap.Int("requested", len(ids)),
			zap.Int("processed", report.ProcessedCount),
		)
		writeJSON(w, http.StatusOK, report)
	})

	return r
}

func parseLeadIDs(raw []json.Number) ([]int64, error) {
	if len(raw) == 0 {
		return nil, eris.New(batch.ErrNoLeadIDs)
	}
	ids := make([]int64, 0, len(raw))
	for _, n := range raw {
		id, err := n.Int64()
		if err != nil || id <= 0 {
			return nil, eris.Errorf("invalid lead id: %s", n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
