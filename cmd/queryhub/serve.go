package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	queryhub "github.com/altamira-data/queryhub"
	"github.com/altamira-data/queryhub/common/logger"
	"github.com/altamira-data/queryhub/schema"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP query service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine, err := queryhub.New(ctx, cfg)
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/v1/ask", askHandler(engine))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Infof("listening on %s", cfg.Server.Addr)
			errCh <- server.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

type askRequest struct {
	Text        string        `json:"text"`
	RequesterID string        `json:"requester_id"`
	Clearance   string        `json:"clearance,omitempty"`
	History     []schema.Turn `json:"history,omitempty"`
}

func askHandler(engine *queryhub.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.RequesterID == "" {
			http.Error(w, "requester_id is required", http.StatusBadRequest)
			return
		}

		query := schema.Query{
			Text:        req.Text,
			RequesterID: req.RequesterID,
			History:     req.History,
		}
		// Clearance comes from the requester directory when one is
		// configured; a caller-asserted clearance is never trusted then.
		if req.Clearance != "" && engine.Directory == nil {
			query.Clearance = schema.Tier(req.Clearance)
		}

		response := engine.Handle(r.Context(), query)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Warnf("write response: %v", err)
		}
	}
}
