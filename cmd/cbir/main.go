package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ken/image_retrieval/internal/config"
	"github.com/ken/image_retrieval/internal/logger"
	"github.com/ken/image_retrieval/pkg/core/distance"
	"github.com/ken/image_retrieval/pkg/core/feature"
	"github.com/ken/image_retrieval/pkg/engine"
	"github.com/ken/image_retrieval/pkg/extract"
	"github.com/ken/image_retrieval/pkg/metrics"
	"github.com/ken/image_retrieval/pkg/relevance"
	"github.com/ken/image_retrieval/pkg/storage"
)

const (
	appName    = "CBIR"
	appVersion = "0.1.0"
)

func main() {
	// Define command-line flags
	var (
		showVersion = flag.Bool("version", false, "Display version information")
		configFile  = flag.String("config", "config.yaml", "Path to configuration file")
		metricsOut  = flag.String("metrics-out", "", "Write Prometheus metrics to this file on exit")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if *metricsOut != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Output = *metricsOut
	}

	lg, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	store, err := storage.NewFileStoreWithNames(cfg.Storage.DataDir, cfg.Corpus.Size,
		cfg.Storage.IntensityFile, cfg.Storage.ColorCodeFile)
	if err != nil {
		log.Fatalf("Failed to create histogram store: %v", err)
	}
	defer store.Close()

	var collector metrics.Collector = metrics.NewNoopCollector()
	var prom *metrics.PrometheusCollector
	if cfg.Metrics.Enabled {
		prom = metrics.NewCollector()
		collector = prom
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	a := &app{cfg: cfg, store: store, metrics: collector, logger: lg}

	switch args[0] {
	case "extract":
		err = a.handleExtract(args[1:])
	case "rank":
		err = a.handleRank(args[1:])
	case "weights":
		err = a.handleWeights(args[1:])
	case "reset":
		err = a.handleReset()
	case "stats":
		err = a.handleStats()
	case "browse":
		err = a.handleBrowse()
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if prom != nil {
		if werr := prom.WriteTextfile(cfg.Metrics.Output); werr != nil {
			lg.Error("Failed to write metrics", zap.String("path", cfg.Metrics.Output), zap.Error(werr))
		}
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		lg.Sync()
		os.Exit(1)
	}
}

// app carries what every subcommand needs
type app struct {
	cfg     *config.Config
	store   storage.HistogramStore
	metrics metrics.Collector
	logger  *zap.Logger
}

func (a *app) extractor() *extract.Extractor {
	ex := extract.NewExtractor(a.cfg.Extract.Workers, a.logger)
	ex.Extension = a.cfg.Corpus.Extension
	return ex
}

// loadEngine reads both histograms from the store and the image sizes from
// the image headers, then builds the engine.
func (a *app) loadEngine() (*engine.Engine, error) {
	intensity, err := a.store.Load(feature.Intensity)
	if err != nil {
		return nil, fmt.Errorf("failed to load intensity histogram (run extract first?): %w", err)
	}
	colorCode, err := a.store.Load(feature.ColorCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load color code histogram: %w", err)
	}
	sizes, err := a.extractor().Sizes(a.cfg.Corpus.ImagesDir, a.cfg.Corpus.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to read image sizes: %w", err)
	}
	return engine.New(intensity, colorCode, sizes,
		engine.WithLogger(a.logger),
		engine.WithMetrics(a.metrics))
}

// handleExtract computes both histograms of the image directory and saves them
func (a *app) handleExtract(args []string) error {
	dir := a.cfg.Corpus.ImagesDir
	if len(args) > 0 {
		dir = args[0]
	}

	ctx := logger.ContextWithLogger(context.Background(), a.logger)
	corpus, err := a.extractor().Directory(ctx, dir, a.cfg.Corpus.Size)
	if err != nil {
		return err
	}

	if err := a.store.Save(feature.Intensity, corpus.Intensity); err != nil {
		return fmt.Errorf("failed to save intensity histogram: %w", err)
	}
	if err := a.store.Save(feature.ColorCode, corpus.ColorCode); err != nil {
		return fmt.Errorf("failed to save color code histogram: %w", err)
	}

	fmt.Printf("Extracted %d images from %s into %s\n", a.cfg.Corpus.Size, dir, a.cfg.Storage.DataDir)
	return nil
}

// handleRank orders the corpus against a query image
func (a *app) handleRank(args []string) error {
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	mode := fs.String("mode", string(distance.IntensityManhattan), "Ranking mode (intensity, colorcode, combined)")
	relevant := fs.String("relevant", "", "Comma-separated relevant image ids, combined mode only")
	top := fs.Int("top", 0, "Print only the first k images (0 prints all)")

	query, rest, err := parseQuery(args)
	if err != nil {
		fmt.Println("Usage: cbir rank <query> [-mode intensity|colorcode|combined] [-relevant 3,5] [-top k]")
		return err
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}

	kind, err := distance.ParseMeasure(*mode)
	if err != nil {
		return err
	}
	set, err := parseIDs(*relevant)
	if err != nil {
		return err
	}
	if set.Len() > 0 && kind != distance.WeightedCombined {
		return fmt.Errorf("-relevant only applies to the %s mode", distance.WeightedCombined)
	}

	e, err := a.loadEngine()
	if err != nil {
		return err
	}

	var w feature.Weights
	if kind == distance.WeightedCombined {
		if w, err = e.ComputeWeights(set, query); err != nil {
			return err
		}
	}
	entries, err := e.Scored(kind, w, query)
	if err != nil {
		return err
	}

	if *top > 0 && *top < len(entries) {
		entries = entries[:*top]
	}
	fmt.Printf("Ranking %d images against image %d using %s:\n", e.CorpusSize(), query, kind)
	for i, entry := range entries {
		fmt.Printf("%d. %d (distance: %.6f)\n", i+1, entry.ID, entry.Distance)
	}
	return nil
}

// handleWeights prints the relevance weights of a query and relevance set
func (a *app) handleWeights(args []string) error {
	fs := flag.NewFlagSet("weights", flag.ContinueOnError)
	relevant := fs.String("relevant", "", "Comma-separated relevant image ids")

	query, rest, err := parseQuery(args)
	if err != nil {
		fmt.Println("Usage: cbir weights <query> [-relevant 3,5]")
		return err
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}
	set, err := parseIDs(*relevant)
	if err != nil {
		return err
	}

	e, err := a.loadEngine()
	if err != nil {
		return err
	}
	w, err := e.ComputeWeights(set, query)
	if err != nil {
		return err
	}

	fmt.Printf("Weights for image %d with relevant images %v:\n", query, set.IDs())
	for d := 1; d <= w.Dims(); d++ {
		fmt.Printf("  [%d]: %.6f\n", d, w[d])
	}
	return nil
}

// handleReset prints the ascending-id order
func (a *app) handleReset() error {
	order := feature.Identity(a.cfg.Corpus.Size)
	for _, id := range order.IDs() {
		fmt.Println(id)
	}
	return nil
}

// handleStats prints the corpus and normalization summary
func (a *app) handleStats() error {
	e, err := a.loadEngine()
	if err != nil {
		return err
	}
	report := e.Report()

	fmt.Printf("Images:              %d\n", e.CorpusSize())
	fmt.Printf("Feature dimensions:  %d\n", report.Dims)
	fmt.Printf("Zero-SD dimensions:  %d\n", report.ZeroSD)
	fmt.Printf("Corrected dimensions: %d\n", report.Corrected)
	fmt.Printf("Smallest positive SD: %.6f\n", report.MinSD)
	return nil
}

func (a *app) handleBrowse() error {
	e, err := a.loadEngine()
	if err != nil {
		return err
	}
	return newBrowser(e.NewSession(), os.Stdout).Run(os.Stdin)
}

// parseQuery splits the leading query id off a subcommand's arguments
func parseQuery(args []string) (feature.ImageID, []string, error) {
	if len(args) < 1 {
		return 0, nil, fmt.Errorf("missing query image id")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, nil, fmt.Errorf("invalid query image id: %s", args[0])
	}
	return feature.ImageID(id), args[1:], nil
}

// parseIDs parses a comma-separated id list into a relevance set
func parseIDs(list string) (*relevance.Set, error) {
	set := relevance.NewSet()
	if strings.TrimSpace(list) == "" {
		return set, nil
	}
	for _, s := range strings.Split(list, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid image id: %s", s)
		}
		set.Add(feature.ImageID(id))
	}
	return set, nil
}

func printUsage() {
	fmt.Printf("%s - Content-based image retrieval over color histograms\n\n", appName)
	fmt.Println("Usage:")
	fmt.Println("  cbir [flags] <command>")
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
	fmt.Println("\nCommands:")
	fmt.Println("  extract [dir]  Compute and save the histograms of images 1..N")
	fmt.Println("  rank <query>   Rank the corpus (Usage: cbir rank <query> [-mode intensity|colorcode|combined] [-relevant 3,5] [-top k])")
	fmt.Println("  weights <query>  Print relevance weights (Usage: cbir weights <query> [-relevant 3,5])")
	fmt.Println("  reset          Print the ascending-id order")
	fmt.Println("  stats          Print the normalization summary")
	fmt.Println("  browse         Interactive session with relevance feedback")
}
