package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"
)

// Routes holds the handlers mounted by NewRouter. Nil handlers are not mounted.
type Routes struct {
	Webhook     http.HandlerFunc
	Trades      http.HandlerFunc
	Trade       http.HandlerFunc
	TradeEvents http.HandlerFunc
	History     http.HandlerFunc
}

func NewRouter(routes Routes) chi.Router {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	if routes.Webhook != nil {
		r.Post("/messages", routes.Webhook)
	}

	r.Route("/trades", func(r chi.Router) {
		if routes.Trades != nil {
			r.Get("/", routes.Trades)
		}
		if routes.Trade != nil {
			r.Get("/{id}", routes.Trade)
		}
		if routes.TradeEvents != nil {
			r.Get("/{id}/events", routes.TradeEvents)
		}
	})

	if routes.History != nil {
		r.Get("/history", routes.History)
	}

	return r
}

// StartServer serves handler until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *Config, handler http.Handler) error {
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
