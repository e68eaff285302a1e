// -----------------------------------------------------------------------
// garimpo - Brazilian market data scraping and aggregation service
// -----------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/app"
	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/config"
)

var (
	configFile  = flag.String("config", "./garimpo.yaml", "Configuration YAML file path")
	envFile     = flag.String("env", "./.env", "Environment file path")
	secretsDir  = flag.String("secrets", "", "Directory with one secret value per file")
	runOnce     = flag.String("once", "", "Run a single scrape and exit (scraper=target)")
	showVersion = flag.Bool("version", false, "Print version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("garimpo %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup order: config first (the logger's level and outputs come
	// from it), then logger, then banner, then wiring.
	bootLogger := arbor.NewLogger()
	cfg := config.NewManager(*configFile, *envFile, *secretsDir, bootLogger)
	if !cfg.Load() {
		bootLogger.Fatal().Msg("Configuration invalid: required variables missing")
		os.Exit(1)
	}

	logger := common.InitLogger(
		cfg.Get("LOG_LEVEL", "info"),
		strings.Split(cfg.Get("LOG_OUTPUT", "stdout"), ","),
		cfg.Get("LOG_DIR", "./logs"),
	)

	common.PrintBanner(common.GetFullVersion())

	logger.Info().
		Str("environment", cfg.Get("ENVIRONMENT", "development")).
		Str("config", *configFile).
		Msg("Configuration loaded")

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	if *runOnce != "" {
		os.Exit(runSingleScrape(application, logger, *runOnce))
	}

	cfg.StartWatching(2 * time.Second)
	defer cfg.StopWatching()

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start application")
		os.Exit(1)
	}

	// Block until SIGINT or SIGTERM, then drain.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals

	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	application.Stop()
}

// runSingleScrape executes one scraper against one target synchronously
// and prints the result as JSON. Used for smoke-testing a source without
// the queue.
func runSingleScrape(application *app.App, logger arbor.ILogger, spec string) int {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		logger.Error().Str("once", spec).Msg("Expected -once scraper=target")
		return 2
	}
	name, target := parts[0], parts[1]

	scraper, err := application.Registry.Get(name)
	if err != nil {
		logger.Error().Err(err).Str("scraper", name).Msg("Unknown scraper")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := scraper.Initialize(ctx); err != nil {
		logger.Error().Err(err).Str("scraper", name).Msg("Scraper initialization failed")
		return 1
	}

	result := scraper.ScrapeWithRetry(ctx, target)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode result")
		return 1
	}
	fmt.Println(string(out))

	if !result.Success {
		return 1
	}
	return 0
}
