package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/engine"
	"github.com/IshaanNene/articlecrawl/internal/fetcher"
	"github.com/IshaanNene/articlecrawl/internal/observability"
	"github.com/IshaanNene/articlecrawl/internal/parser"
	"github.com/IshaanNene/articlecrawl/internal/storage"
)

var (
	cfgFile           string
	verbose           bool
	noProgress        bool
	linkSelectors     []string
	bodySelectors     []string
	nextSelectors     []string
	quota             int
	outputDir         string
	createDir         bool
	filePrefix        string
	textEncoding      string
	mode              string
	fetcherType       string
	checkpointBackend string
	domainPattern     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "articlecrawl",
		Short: "articlecrawl: paginated news archive crawler",
		Long: `articlecrawl walks the paginated listing pages of a news site, follows
every article link and saves each article's body text to a numbered file.

Features:
  • CSS and XPath selectors, single or ordered multi-pattern
  • Sequential or chunked-concurrent article processing
  • Exact article quota with zero-padded file numbering
  • Checkpoints to JSON, SQLite or MongoDB with resume
  • HTTP or headless browser fetching, proxy rotation
  • Prometheus metrics endpoint`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	rootCmd.PersistentFlags().StringVar(&fetcherType, "fetcher", "", "fetcher type: http, browser")
	rootCmd.PersistentFlags().StringVar(&checkpointBackend, "checkpoint-backend", "", "checkpoint store: file, sqlite, mongodb")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [base-url]",
		Short: "Crawl a news site from its first listing page",
		Long: `Crawl listing pages starting at the base URL, saving article bodies until
the quota is met or there is no next page. Repeat a selector flag to give
an ordered list of patterns.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawl,
	}

	cmd.Flags().StringArrayVar(&linkSelectors, "link-selector", nil, "article link selector (repeatable)")
	cmd.Flags().StringArrayVar(&bodySelectors, "body-selector", nil, "article body selector (repeatable)")
	cmd.Flags().StringArrayVar(&nextSelectors, "next-selector", nil, "next page selector (repeatable)")
	cmd.Flags().IntVarP(&quota, "quota", "n", 0, "number of articles to save")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&createDir, "create-dir", false, "create the output directory if missing")
	cmd.Flags().StringVarP(&filePrefix, "prefix", "p", "", "article file name prefix")
	cmd.Flags().StringVar(&textEncoding, "encoding", "", "article file text encoding")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "article mode: sequential, chunked-concurrent")
	cmd.Flags().StringVar(&domainPattern, "domain-pattern", "", "regular expression capturing the site prefix")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(args) == 1 {
		cfg.Crawl.BaseURL = args[0]
	}
	applyCLIOverrides(cmd, cfg)

	logger, closer, err := observability.NewLogger(cfg.Logging, verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer closer.Close()

	crawler, err := engine.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := storage.NewRecordStore(&cfg.Checkpoint, logger)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	return execute(cfg, crawler, store, 0, logger)
}

// execute wires the collaborators into crawler, runs it until it stops or a
// signal arrives and prints a summary.
func execute(cfg *config.Config, crawler *engine.Crawler, store storage.RecordStore, saved int, logger *slog.Logger) error {
	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	writer, err := storage.NewArticleFileWriter(&cfg.Crawl, logger)
	if err != nil {
		return fmt.Errorf("create article writer: %w", err)
	}

	crawler.SetFetcher(f)
	crawler.SetWriter(writer)
	crawler.SetCheckpointStore(store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(logger)
	crawler.SetMetrics(metrics)
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path)
	}

	if !noProgress {
		crawler.SetProgress(newProgressReporter(os.Stderr, cfg.Crawl.NumberOfArticles, saved))
	}

	logger.Info("starting crawl",
		"base_url", cfg.Crawl.BaseURL,
		"quota", cfg.Crawl.NumberOfArticles,
		"mode", cfg.Crawl.ConcurrencyMode,
		"fetcher", f.Type(),
		"checkpoint", store.Name(),
	)

	res, runErr := crawler.Run(ctx)
	printSummary(os.Stdout, cfg, res)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("crawl interrupted; continue with \"articlecrawl resume\": %w", runErr)
		}
		return runErr
	}
	if res.Err != nil {
		return fmt.Errorf("crawl stopped early: %w", res.Err)
	}
	return nil
}

func printSummary(w io.Writer, cfg *config.Config, res engine.Result) {
	fmt.Fprintf(w, "\n✅ Crawl finished in %s (%s)\n", res.Duration.Round(time.Millisecond), res.Reason)
	fmt.Fprintf(w, "   Pages:       %d visited\n", res.PagesVisited)
	fmt.Fprintf(w, "   Articles:    %d/%d saved, %d failed\n", res.ArticlesSaved, cfg.Crawl.NumberOfArticles, res.ArticlesFailed)
	fmt.Fprintf(w, "   Checkpoints: %d written\n", res.CheckpointsWritten)
	fmt.Fprintf(w, "   Last page:   %s\n", res.LastPageURL)
	if cfg.Crawl.OutputDirectory != "" {
		fmt.Fprintf(w, "   Output:      %s\n", cfg.Crawl.OutputDirectory)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("articlecrawl %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyCLIOverrides(cmd, cfg)
			fmt.Printf("Crawl:\n")
			fmt.Printf("  Base URL:          %s\n", cfg.Crawl.BaseURL)
			fmt.Printf("  Link Selector:     %s\n", cfg.Crawl.ArticleLinkSelector)
			fmt.Printf("  Body Selector:     %s\n", cfg.Crawl.ArticleBodySelector)
			fmt.Printf("  Next Selector:     %s\n", cfg.Crawl.NextPageSelector)
			fmt.Printf("  Articles:          %d\n", cfg.Crawl.NumberOfArticles)
			fmt.Printf("  Output Directory:  %s\n", cfg.Crawl.OutputDirectory)
			fmt.Printf("  File Prefix:       %s\n", cfg.Crawl.FileNamePrefix)
			fmt.Printf("  Text Encoding:     %s\n", cfg.Crawl.TextEncoding)
			fmt.Printf("  Mode:              %s\n", cfg.Crawl.ConcurrencyMode)
			fmt.Printf("  Domain Pattern:    %s\n", cfg.Crawl.BaseDomainPattern)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Method:            %s\n", cfg.Fetcher.Method)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  Rotation:          %s\n", cfg.Proxy.Rotation)
			fmt.Printf("  Count:             %d\n", len(cfg.Proxy.URLs))
			fmt.Printf("\nCheckpoint:\n")
			fmt.Printf("  Backend:           %s\n", cfg.Checkpoint.Backend)
			fmt.Printf("  Name:              %s\n", cfg.Checkpoint.Name)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// applyCLIOverrides applies command-line flag values to the config. Flags
// that were not given on the command line leave the config untouched.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if spec, ok := selectorFlag(linkSelectors); ok {
		cfg.Crawl.ArticleLinkSelector = spec
	}
	if spec, ok := selectorFlag(bodySelectors); ok {
		cfg.Crawl.ArticleBodySelector = spec
	}
	if spec, ok := selectorFlag(nextSelectors); ok {
		cfg.Crawl.NextPageSelector = spec
	}
	if flags.Changed("quota") {
		cfg.Crawl.NumberOfArticles = quota
	}
	if flags.Changed("output") {
		cfg.Crawl.OutputDirectory = outputDir
	}
	if flags.Changed("create-dir") {
		cfg.Crawl.CreateOutputDir = createDir
	}
	if flags.Changed("prefix") {
		cfg.Crawl.FileNamePrefix = filePrefix
	}
	if textEncoding != "" {
		cfg.Crawl.TextEncoding = textEncoding
	}
	if mode != "" {
		cfg.Crawl.ConcurrencyMode = config.Mode(mode)
	}
	if domainPattern != "" {
		cfg.Crawl.BaseDomainPattern = domainPattern
	}
	if fetcherType != "" {
		cfg.Fetcher.Type = fetcherType
	}
	if checkpointBackend != "" {
		cfg.Checkpoint.Backend = checkpointBackend
	}
}

func selectorFlag(values []string) (parser.SelectorSpec, bool) {
	if len(values) == 0 {
		return parser.SelectorSpec{}, false
	}
	return parser.SelectorOf(values...), true
}
