// Package cmd defines the infersizer CLI.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/infersizer/infersizer/cmd/cli/format"
	"github.com/infersizer/infersizer/internal/config"
	"github.com/infersizer/infersizer/internal/database"
	"github.com/infersizer/infersizer/internal/hub"
	"github.com/infersizer/infersizer/internal/recommender"
	"github.com/infersizer/infersizer/internal/registry"
	"github.com/infersizer/infersizer/internal/storage"
	"github.com/infersizer/infersizer/internal/workflow"
)

var (
	configPath   string
	outputFormat string
)

// RootCmd is the top-level CLI command.
var RootCmd = &cobra.Command{
	Use:          "infersizer",
	Short:        "Find the cost-optimal serving instance for a pretrained model",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", envOrDefault("INFERSIZER_CONFIG", "infersizer.yaml"), "Path to the workflow config file")
	RootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, csv")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func getFormat() format.OutputFormat {
	switch outputFormat {
	case "json":
		return format.FormatJSON
	case "csv":
		return format.FormatCSV
	default:
		return format.FormatTable
	}
}

// newHubClient resolves the HuggingFace token (optionally from Secrets
// Manager) and builds a Hub client.
func newHubClient(ctx context.Context, cfg *config.Config) (*hub.Client, error) {
	var token string
	if cfg.HFTokenSecret != "" {
		var err error
		token, err = hub.TokenFromSecretsManager(ctx, cfg.Region, cfg.HFTokenSecret)
		if err != nil {
			return nil, fmt.Errorf("resolve hub token: %w", err)
		}
	}
	return hub.NewClient(token), nil
}

func newInvoker(ctx context.Context, cfg *config.Config) (*recommender.Invoker, error) {
	return recommender.New(ctx, cfg.Region,
		recommender.WithRetry(cfg.RetryAttempts, cfg.RetryBaseDelay.Std()),
		recommender.WithPolling(cfg.PollInterval.Std(), cfg.WaitTimeout.Std()),
	)
}

// newRepo opens the optional job-history repository. Returns nil when no
// database is configured; callers must treat that as "history disabled".
func newRepo(ctx context.Context, cfg *config.Config) (*database.Repository, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	return database.NewRepository(ctx, cfg.DatabaseURL)
}

// newPipeline assembles the full stage set for submit/run commands.
func newPipeline(ctx context.Context, cfg *config.Config) (*workflow.Pipeline, func(), error) {
	hubClient, err := newHubClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	uploader, err := storage.New(ctx, cfg.Region, cfg.Bucket)
	if err != nil {
		return nil, nil, err
	}
	invoker, err := newInvoker(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	verifier, err := registry.New(ctx, cfg.Region)
	if err != nil {
		return nil, nil, err
	}
	repo, err := newRepo(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	p := &workflow.Pipeline{
		Hub:      hubClient,
		Uploader: uploader,
		Invoker:  invoker,
		Verifier: verifier,
	}
	cleanup := func() {}
	if repo != nil {
		p.Repo = repo
		cleanup = repo.Close
	}
	return p, cleanup, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
