package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/engine"
	"github.com/IshaanNene/articlecrawl/internal/observability"
	"github.com/IshaanNene/articlecrawl/internal/storage"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

// resumeCmd creates the "resume" subcommand.
func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Continue a crawl from its last checkpoint",
		Long: `Load the checkpoint written by an earlier crawl and continue from the
listing page it stopped on. Crawl settings come from the checkpoint; fetcher,
proxy, logging and metrics settings come from the config file.`,
		Args: cobra.NoArgs,
		RunE: runResume,
	}
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)

	logger, closer, err := observability.NewLogger(cfg.Logging, verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer closer.Close()

	store, err := storage.NewRecordStore(&cfg.Checkpoint, logger)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	rec, err := engine.NewCheckpointManager(store, cfg.Checkpoint.Name, logger).Load(context.Background())
	if err != nil {
		if errors.Is(err, types.ErrRecordNotFound) {
			return fmt.Errorf("no checkpoint %q in %s store", cfg.Checkpoint.Name, store.Name())
		}
		return err
	}

	crawler, err := engine.Resume(cfg, rec, logger)
	if err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}

	logger.Info("resuming crawl",
		"current_page_url", rec.CurrentPageURL,
		"articles_saved_count", rec.ArticlesSavedCount,
		"number_of_articles", rec.NumberOfArticles,
	)
	return execute(rec.Apply(cfg), crawler, store, rec.ArticlesSavedCount, logger)
}
