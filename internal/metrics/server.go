package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// NewRouter exposes /metrics and /health.
func NewRouter(rec *Recorder) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", rec.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	return router
}

// Serve runs the metrics endpoint until ctx is cancelled.
func Serve(ctx context.Context, addr string, rec *Recorder, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "metrics_server").Logger()
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(rec),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
