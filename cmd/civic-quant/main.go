// Command civic-quant runs the message-to-event pipeline: the ingest
// gateway and phase-2 admin trigger over HTTP (serve), or a single
// phase-2 batch (phase2 run-once) and a VIP digest cycle (digest run) as
// one-shot subcommands for cron-style invocation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ciaranglansford/civic-quant/ent"
	"github.com/ciaranglansford/civic-quant/pkg/api"
	"github.com/ciaranglansford/civic-quant/pkg/config"
	"github.com/ciaranglansford/civic-quant/pkg/database"
	"github.com/ciaranglansford/civic-quant/pkg/digest"
	"github.com/ciaranglansford/civic-quant/pkg/entstore"
	"github.com/ciaranglansford/civic-quant/pkg/extractclient"
	"github.com/ciaranglansford/civic-quant/pkg/phase2"
	"github.com/ciaranglansford/civic-quant/pkg/publisher"
	"github.com/ciaranglansford/civic-quant/pkg/services"
	"github.com/ciaranglansford/civic-quant/pkg/version"
)

var (
	configDir    string
	routingYAML  string
	extractorVer = "v1"
)

func main() {
	root := &cobra.Command{
		Use:     "civic-quant",
		Short:   "Financial and geopolitical news extraction pipeline",
		Version: version.Full(),
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configDir, "config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	root.PersistentFlags().StringVar(&routingYAML, "routing-config", "", "path to a routing.yaml override (defaults to <config-dir>/routing.yaml)")

	root.AddCommand(newServeCmd(), newPhase2Cmd(), newDigestCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func loadConfig() (*config.Config, error) {
	envFile := configDir + "/.env"
	routingPath := routingYAML
	if routingPath == "" {
		routingPath = configDir + "/routing.yaml"
	}
	return config.Load(envFile, routingPath)
}

func connectDatabase(ctx context.Context) (*database.Client, error) {
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	client, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return client, nil
}

// newMessageProcessor wires the full extraction-through-entity-indexing
// pipeline: the OpenAI extraction client plus every ent-backed store
// adapter the MessageProcessor needs.
func newMessageProcessor(cfg *config.Config, entClient *ent.Client) *services.MessageProcessor {
	extract := extractclient.New(extractclient.Config{
		APIKey:      cfg.Scalars.OpenAIAPIKey,
		Model:       cfg.Scalars.OpenAIModel,
		TimeoutSecs: cfg.Scalars.OpenAITimeoutSeconds,
		MaxRetries:  cfg.Scalars.OpenAIMaxRetries,
	})
	return services.NewMessageProcessor(
		entstore.NewProcessorStore(entClient),
		entstore.NewEventStore(entClient),
		entstore.NewEntityMentionStore(entClient),
		extract,
		extractorVer,
		nil,
	)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server: ingest gateway, phase-2 admin trigger, health check",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			dbClient, err := connectDatabase(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := dbClient.Close(); err != nil {
					slog.Error("error closing database client", "error", err)
				}
			}()

			ingestSvc := services.NewIngestService(entstore.NewRawMessageStore(dbClient.Client))
			proc := newMessageProcessor(cfg, dbClient.Client)
			scheduler := phase2.NewScheduler(entstore.NewPhase2Store(dbClient.Client), proc, phase2.Config{
				Enabled:           cfg.Scalars.Phase2ExtractionEnabled,
				ModelAPIKeySet:    cfg.Scalars.OpenAIAPIKey != "",
				BatchSize:         cfg.Scalars.Phase2BatchSize,
				LeaseSeconds:      cfg.Scalars.Phase2LeaseSeconds,
				SchedulerLockSecs: cfg.Scalars.Phase2SchedulerLockSecs,
			})

			server := api.NewServer(ingestSvc, scheduler, dbClient.DB(), cfg.Scalars.Phase2AdminToken)

			addr := cfg.AddrString()
			slog.Info("civic-quant listening", "addr", addr)
			return server.Router().Run(addr)
		},
	}
}

func newPhase2Cmd() *cobra.Command {
	phase2Cmd := &cobra.Command{
		Use:   "phase2",
		Short: "Phase-2 extraction batch scheduler",
	}
	phase2Cmd.AddCommand(&cobra.Command{
		Use:   "run-once",
		Short: "Run a single phase-2 batch and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			dbClient, err := connectDatabase(ctx)
			if err != nil {
				return err
			}
			defer dbClient.Close()

			proc := newMessageProcessor(cfg, dbClient.Client)
			scheduler := phase2.NewScheduler(entstore.NewPhase2Store(dbClient.Client), proc, phase2.Config{
				Enabled:           cfg.Scalars.Phase2ExtractionEnabled,
				ModelAPIKeySet:    cfg.Scalars.OpenAIAPIKey != "",
				BatchSize:         cfg.Scalars.Phase2BatchSize,
				LeaseSeconds:      cfg.Scalars.Phase2LeaseSeconds,
				SchedulerLockSecs: cfg.Scalars.Phase2SchedulerLockSecs,
			})

			summary, err := scheduler.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("run phase2 batch: %w", err)
			}
			slog.Info("phase2 batch complete",
				"processing_run_id", summary.ProcessingRunID,
				"selected", summary.Selected,
				"completed", summary.Completed,
				"failed", summary.Failed,
				"skipped", summary.Skipped,
			)
			return nil
		},
	})
	return phase2Cmd
}

func newDigestCmd() *cobra.Command {
	digestCmd := &cobra.Command{
		Use:   "digest",
		Short: "VIP digest publishing",
	}
	digestCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Build and publish one VIP digest cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			dbClient, err := connectDatabase(ctx)
			if err != nil {
				return err
			}
			defer dbClient.Close()

			zlog := zerolog.New(os.Stderr).With().Timestamp().Logger()
			pub := publisher.New(publisher.Config{
				BotToken: cfg.Scalars.TelegramBotToken,
				ChatID:   cfg.Scalars.TelegramChatID,
			}, zlog)

			store := entstore.NewDigestStore(dbClient.Client)
			runner := digest.NewRunner(store, store, pub, nil)

			result, err := runner.Run(ctx, cfg.Scalars.VIPDigestHours)
			if err != nil {
				return fmt.Errorf("run digest: %w", err)
			}
			slog.Info("digest cycle complete", "status", result.Status, "content_hash", result.ContentHash, "event_count", len(result.EventIDs))
			return nil
		},
	})
	return digestCmd
}
