package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/creancio/be-rc-validation/internal/client"
	"github.com/creancio/be-rc-validation/internal/config"
	"github.com/creancio/be-rc-validation/internal/handler"
	"github.com/creancio/be-rc-validation/internal/repository"
	"github.com/creancio/be-rc-validation/internal/service"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "rc-validation",
		Short: "Investigation validation workflow service",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return err
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.Service.Name).
		Str("environment", cfg.Service.Environment).
		Logger()

	log.Info().
		Str("version", version).
		Msg("Starting investigation validation service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local decision log (optional)
	var decisions service.DecisionLog
	if cfg.Database.DSN != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid database DSN")
		}
		poolCfg.MaxConns = cfg.Database.MaxConns

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()
		decisions = repository.NewDecisionLogRepository(pool)
		log.Info().Msg("Decision log database connected")
	} else {
		log.Warn().Msg("No database configured; decision log disabled")
	}

	// Notification publisher (optional)
	var notifier service.DecisionNotifier
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
		notifier = client.NewNotificationPublisher(nc, log)
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("Notification publisher connected")
	} else {
		log.Warn().Msg("No NATS URL configured; notifications disabled")
	}

	// Facade clients against the legacy backend
	investigations := client.NewInvestigationsClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, log)
	records := client.NewValidationRecordsClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, log)
	cases := client.NewCasesClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, log)
	log.Info().Str("backend_url", cfg.Backend.BaseURL).Msg("Facade clients initialized")

	svc := service.NewValidationService(investigations, records, cases, decisions, notifier, &log)

	recovery := service.NewRecoveryPolicy(ctx, func(rctx context.Context) error {
		_, _, err := svc.LoadWorkflowItems(rctx)
		return err
	}, cfg.Recovery.ReloadDelay, cfg.Recovery.MaxReloadAttempts, log)

	httpHandler := handler.NewHTTPHandler(svc, recovery, &log)
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/api/v1/workflow/items", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListWorkflowItems(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/workflow/approve", requireMethod(http.MethodPost, httpHandler.Approve))
	mux.HandleFunc("/api/v1/workflow/reject", requireMethod(http.MethodPost, httpHandler.Reject))
	mux.HandleFunc("/api/v1/workflow/revalidate", requireMethod(http.MethodPost, httpHandler.RequestNewValidation))
	mux.HandleFunc("/api/v1/workflow/investigations", requireMethod(http.MethodDelete, httpHandler.DeleteInvestigation))
	mux.HandleFunc("/api/v1/workflow/history", requireMethod(http.MethodGet, httpHandler.DecisionHistory))

	mux.HandleFunc("/api/v1/investigations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			httpHandler.CreateInvestigation(w, r)
		case http.MethodPut:
			httpHandler.UpdateInvestigation(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	var h http.Handler = mux
	h = handler.RequestID(h)
	h = handler.AccessLog(&log)(h)
	h = handler.Recovery(&log)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
	return nil
}

func requireMethod(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}
