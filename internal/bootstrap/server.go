package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Domenick1991/staybooking/api"
	"github.com/Domenick1991/staybooking/config"
	"github.com/Domenick1991/staybooking/internal/guard"
	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	swaggerFile = "bookings.swagger.json"
	docsPrefix  = "/docs/"
)

// Run serves handler on cfg.HTTP.Address and blocks until ctx is canceled or
// the server fails. In-flight requests get five seconds to finish.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http_listen", "address", cfg.HTTP.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

// DocsHandler serves the OpenAPI document from swaggerDir and the Swagger UI
// for every other path under /docs/. It returns nil when swaggerDir is empty.
func DocsHandler(swaggerDir string) http.Handler {
	if swaggerDir == "" {
		return nil
	}
	specPath := docsPrefix + swaggerFile
	ui := httpSwagger.Handler(httpSwagger.URL(specPath))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == specPath {
			w.Header().Set("Content-Type", "application/json")
			http.ServeFile(w, r, filepath.Join(swaggerDir, swaggerFile))
			return
		}
		ui.ServeHTTP(w, r)
	})
}

// GuardPolicy maps the guard section of the config onto a guard policy for
// the booking endpoint.
func GuardPolicy(cfg config.GuardConfig) guard.Policy {
	policy := guard.Policy{
		Safelist:      cfg.Safelist,
		Blocklist:     cfg.Blocklist,
		BadUserAgents: cfg.BadUserAgents,
		BookingPath:   api.BookingsPath,
		General:       guard.Limit{Requests: cfg.General.Requests, Period: cfg.General.Period()},
		BookingByIP:   guard.Limit{Requests: cfg.BookingsByIP.Requests, Period: cfg.BookingsByIP.Period()},
		BookingByMail: guard.Limit{Requests: cfg.BookingsByEmail.Requests, Period: cfg.BookingsByEmail.Period()},
		Ban: guard.Ban{
			MaxRetry: cfg.BanMaxRetry,
			FindTime: time.Duration(cfg.BanFindTimeSeconds) * time.Second,
			BanTime:  time.Duration(cfg.BanTimeSeconds) * time.Second,
		},
	}
	if cfg.AllowAllAgents {
		policy.BadUserAgents = ""
	}
	return policy
}
