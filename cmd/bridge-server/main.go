package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/meddatabridge/pam-bridge/internal/config"
	"github.com/meddatabridge/pam-bridge/internal/domain/adminapi"
	"github.com/meddatabridge/pam-bridge/internal/domain/dossier"
	"github.com/meddatabridge/pam-bridge/internal/domain/endpoint"
	"github.com/meddatabridge/pam-bridge/internal/domain/identifier"
	"github.com/meddatabridge/pam-bridge/internal/domain/inbound"
	"github.com/meddatabridge/pam-bridge/internal/domain/messagelog"
	"github.com/meddatabridge/pam-bridge/internal/domain/outbound"
	"github.com/meddatabridge/pam-bridge/internal/domain/patient"
	"github.com/meddatabridge/pam-bridge/internal/domain/scenario"
	"github.com/meddatabridge/pam-bridge/internal/domain/scenarioapi"
	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
	"github.com/meddatabridge/pam-bridge/internal/domain/validator"
	"github.com/meddatabridge/pam-bridge/internal/domain/venue"
	"github.com/meddatabridge/pam-bridge/internal/domain/vocabulary"
	"github.com/meddatabridge/pam-bridge/internal/platform/db"
	"github.com/meddatabridge/pam-bridge/internal/platform/middleware"

	"github.com/spf13/cobra"
)

// bridge is the fully wired set of collaborators every subcommand needs;
// built once from config + a database pool, mirroring how the teacher's
// runServer wires one domain package at a time from a single pgxpool.Pool.
type bridge struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	pipeline  *inbound.Pipeline
	scenario  *scenario.Service
	manager   *endpoint.Manager
	endpoints endpoint.Repository
	patients  *patient.Service
	dossiers  *dossier.Service
	venues    *venue.Service
	structure *structure.Service
	log       *messagelog.Service
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "bridge-server",
		Short: "Hospital PAM interoperability bridge",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(replayCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge HTTP and MLLP endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx, "public")
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)
	return cmd
}

// ingestCmd feeds a single HL7v2 file through the inbound pipeline as if
// a file-inbox endpoint had picked it up, for operator-driven replays of
// production captures without standing up a whole endpoint.
func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <endpoint-id> <file>",
		Short: "Feed one HL7v2 file through the inbound pipeline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpointID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid endpoint id: %w", err)
			}
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			b, err := newBridge()
			if err != nil {
				return err
			}
			defer b.pool.Close()

			ep, err := b.endpoints.GetByID(context.Background(), endpointID)
			if err != nil {
				return err
			}
			if ep == nil {
				return fmt.Errorf("endpoint %s not found", endpointID)
			}

			ack, err := b.pipeline.Process(context.Background(), raw, endpointID, ep.JuridicalEntityID, false)
			if err != nil {
				return err
			}
			fmt.Println(string(ack))
			return nil
		},
	}
	return cmd
}

// replayCmd launches a scenario run against an endpoint, exit codes
// follow spec §6: 0 success, 1 partial, 2 error, 3 usage/config error.
func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <template-key> <endpoint-id>",
		Short: "Materialize and replay a scenario template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			stopOnError, _ := cmd.Flags().GetBool("stop-on-error")
			ippPrefix, _ := cmd.Flags().GetString("ipp-prefix")
			ndaPrefix, _ := cmd.Flags().GetString("nda-prefix")
			protocolFlag, _ := cmd.Flags().GetString("protocol")

			endpointID, err := uuid.Parse(args[1])
			if err != nil {
				os.Exit(3)
			}

			b, err := newBridge()
			if err != nil {
				os.Exit(3)
			}
			defer b.pool.Close()

			ctx := context.Background()
			ep, err := b.endpoints.GetByID(ctx, endpointID)
			if err != nil || ep == nil {
				fmt.Fprintf(os.Stderr, "endpoint not found: %v\n", err)
				os.Exit(3)
			}

			tmpl, err := b.scenario.Repo.GetTemplateByKey(ctx, args[0])
			if err != nil || tmpl == nil {
				fmt.Fprintf(os.Stderr, "template not found: %v\n", err)
				os.Exit(3)
			}

			protocol := scenario.ProtocolHL7v2
			if protocolFlag == "FHIR" {
				protocol = scenario.ProtocolFHIR
			}

			run, err := b.scenario.LaunchRun(ctx, tmpl, ep, protocol, scenario.LaunchOptions{
				DryRun:            dryRun,
				StopOnError:       stopOnError,
				IPPPrefixOverride: ippPrefix,
				NDAPrefixOverride: ndaPrefix,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(2)
			}

			fmt.Printf("run %s: %s (%d steps)\n", run.ID, run.Status, len(run.Steps))
			switch run.Status {
			case scenario.RunSuccess:
				os.Exit(0)
			case scenario.RunPartial:
				os.Exit(1)
			default:
				os.Exit(2)
			}
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "render and log without transmitting")
	cmd.Flags().Bool("stop-on-error", false, "abort remaining steps after the first error")
	cmd.Flags().String("ipp-prefix", "", "override the allocated IPP's fixed prefix")
	cmd.Flags().String("nda-prefix", "", "override the allocated NDA's fixed prefix")
	cmd.Flags().String("protocol", "HL7v2", "HL7v2 or FHIR")
	return cmd
}

func newBridge() (*bridge, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}

	identRepo := identifier.NewRepo(pool)
	identSvc := identifier.NewService(identRepo)
	structRepo := structure.NewRepo(pool)
	structSvc := structure.NewService(structRepo)
	vocab := vocabulary.NewRegistry()
	validatorSvc := validator.NewService(vocab)
	patientRepo := patient.NewRepo(pool)
	patientSvc := patient.NewService(patientRepo)
	dossierRepo := dossier.NewRepo(pool)
	dossierSvc := dossier.NewService(dossierRepo)
	venueRepo := venue.NewRepo(pool)
	venueSvc := venue.NewService(venueRepo)

	var mirror messagelog.Mirror
	if cfg.MessageLogEventStoreURL != "" {
		m, err := messagelog.NewEventStoreMirror(cfg.MessageLogEventStoreURL)
		if err != nil {
			logger.Warn().Err(err).Msg("message log EventStoreDB mirror disabled: connect failed")
		} else {
			mirror = m
		}
	}
	logRepo := messagelog.NewRepo(pool)
	logSvc := messagelog.NewService(logRepo, mirror, logger)

	pipeline := &inbound.Pipeline{
		Identifiers: identSvc,
		IdentRepo:   identRepo,
		Structure:   structSvc,
		Validator:   validatorSvc,
		Patients:    patientSvc,
		Dossiers:    dossierSvc,
		Venues:      venueSvc,
		Log:         logSvc,
	}

	generator := outbound.NewGenerator(identRepo, structSvc)
	endpointRepo := endpoint.NewRepo(pool)
	manager := endpoint.NewManager(endpointRepo, pipeline, logger)
	scenarioRepo := scenario.NewRepo(pool)
	scenarioSvc := scenario.NewService(scenarioRepo, venueRepo, identSvc, identRepo, structSvc, generator, manager, logSvc)

	return &bridge{
		cfg: cfg, logger: logger, pool: pool,
		pipeline: pipeline, scenario: scenarioSvc, manager: manager, endpoints: endpointRepo,
		patients: patientSvc, dossiers: dossierSvc, venues: venueSvc, structure: structSvc, log: logSvc,
	}, nil
}

func runServer() error {
	b, err := newBridge()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start:", err)
		os.Exit(3)
	}
	defer b.pool.Close()
	b.logger.Info().Msg("connected to database")

	ctx := context.Background()
	endpoints, err := b.endpoints.List(ctx)
	if err != nil {
		b.logger.Fatal().Err(err).Msg("failed to list endpoints")
	}
	for _, ep := range endpoints {
		if err := b.manager.Start(ctx, ep.ID); err != nil {
			b.logger.Error().Err(err).Str("endpoint", ep.Name).Msg("failed to start endpoint")
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(b.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(b.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(time.Duration(b.cfg.HTTPTimeoutSecs) * time.Second))
	e.Use(middleware.BodyLimit(b.cfg.HTTPBodyLimit, b.cfg.HTTPTemplateBodyLimit))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: b.cfg.RateLimitRPS,
		BurstSize:         b.cfg.RateLimitBurst,
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: b.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))

	e.GET("/health", db.HealthHandler(b.pool))

	apiV1 := e.Group("/api/v1")

	adminHandler := adminapi.NewHandler(b.patients, b.dossiers, b.venues, b.structure, b.log)
	adminHandler.RegisterRoutes(apiV1.Group("/admin"))

	scenarioHandler := scenarioapi.NewHandler(b.scenario, b.endpoints)
	scenarioHandler.RegisterRoutes(apiV1.Group("/scenarios"))

	apiV1.GET("/scenarios/by-key/:key/stats", func(c echo.Context) error {
		tmpl, err := b.scenario.Repo.GetTemplateByKey(c.Request().Context(), c.Param("key"))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		if tmpl == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}
		stats, err := b.scenario.Stats(c.Request().Context(), &tmpl.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, stats)
	})

	go func() {
		addr := ":" + b.cfg.Port
		b.logger.Info().Str("addr", addr).Msg("bridge server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			b.logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	b.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		b.logger.Error().Err(err).Msg("server shutdown failed")
	}
	for _, ep := range endpoints {
		_ = b.manager.Stop(context.Background(), ep.ID)
	}
	b.logger.Info().Msg("server stopped")
	return nil
}
