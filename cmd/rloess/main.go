package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"rloess/internal/models"
	"rloess/pkg/config"
	"rloess/pkg/dataset"
	"rloess/pkg/grid"
	"rloess/pkg/loess"
	"rloess/pkg/progress"
	"rloess/pkg/report"
	"rloess/pkg/visualization"
)

// sqlitePrefix marks an -input or -save-db value as a SQLite database path
const sqlitePrefix = "sqlite:"

func main() {
	// Parse command line arguments
	input := flag.String("input", "", "Input samples: a CSV file (coordinates, then value) or sqlite:<path>")
	datasetName := flag.String("dataset", "default", "Dataset name inside a SQLite database")
	header := flag.Bool("header", true, "CSV files start with a header row")
	queryFile := flag.String("query", "", "CSV file of query locations (default: a regular grid over the data)")
	gridPoints := flag.Int("grid", 0, "Grid nodes per axis when no query file is given")
	outputName := flag.String("output", "smoothed.csv", "Output CSV filename")
	configPath := flag.String("config", "rloess.yaml", "YAML configuration file")
	span := flag.Float64("span", 0, "Neighbourhood size: a count when > 1, otherwise a fraction of the input")
	iterations := flag.Int("iter", 0, "Number of robustness iterations")
	order := flag.Int("order", 0, "Degree of the local polynomial (1 or 2)")
	threads := flag.Int("threads", 0, "Number of goroutines fitting in parallel")
	saveImages := flag.Bool("images", false, "Save grid slices as JPEG images")
	saveDB := flag.String("save-db", "", "Also store input and result in sqlite:<path>")
	flag.Parse()

	// Validate inputs
	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags given on the command line take precedence over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "span":
			cfg.Smoothing.Span = *span
		case "iter":
			cfg.Smoothing.Iterations = *iterations
		case "order":
			cfg.Smoothing.Order = *order
		case "threads":
			cfg.Smoothing.NumThreads = *threads
		case "grid":
			cfg.Grid.Points = *gridPoints
		case "images":
			cfg.Output.SaveImages = *saveImages
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	ctx := context.Background()

	fmt.Println("================================")
	fmt.Println("ROBUST MULTIVARIATE LOESS SMOOTHING")
	fmt.Println("================================")

	ds, err := loadDataset(ctx, *input, *datasetName, *header)
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}
	fmt.Printf("Loaded %d samples with %d coordinates from %s\n", ds.Len(), ds.Dims(), *input)

	// Build the query locations
	var queries [][]float64
	var g *grid.Grid
	if *queryFile != "" {
		f, err := os.Open(*queryFile)
		if err != nil {
			log.Fatalf("Failed to open query file: %v", err)
		}
		queries, err = dataset.ReadQueriesCSV(f, *header)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to read query file: %v", err)
		}
	} else {
		g, err = grid.Bounds(ds, cfg.Grid.Points, cfg.Grid.Widen)
		if err != nil {
			log.Fatalf("Failed to build evaluation grid (lower -grid or pass -query): %v", err)
		}
		queries = g.Points()
		fmt.Printf("Evaluating on a %v grid\n", g.Shape())
	}

	params := loess.Params{
		Span:         cfg.Smoothing.Span,
		Iterations:   cfg.Smoothing.Iterations,
		Order:        cfg.Smoothing.Order,
		NumThreads:   cfg.Smoothing.NumThreads,
		PollInterval: cfg.Smoothing.PollInterval,
	}
	var console *progress.Console
	if cfg.Output.Verbose {
		console = progress.NewConsole(os.Stdout)
		params.Progress = console.Report
	}

	workers := params.NumThreads
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	fmt.Printf("Smoothing %d queries with %d threads...\n", len(queries), workers)
	startTime := time.Now()
	res, err := loess.SmoothPoints(ds.Locations, ds.Values, queries, params)
	if err != nil {
		log.Fatalf("Smoothing failed: %v", err)
	}
	if console != nil {
		console.Done()
	}
	processingTime := time.Since(startTime)

	result := &models.Result{Queries: queries, Values: res.Values, Weights: res.Weights}
	if err := writeOutput(*outputName, result, ds.Dims(), cfg.Output.Precision); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	fmt.Printf("\nSmoothing completed in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output saved to: %s\n\n", *outputName)
	fmt.Printf("Neighbours per fit: %d\n", res.Neighbors)
	for _, pass := range res.Passes {
		if pass.Skipped {
			fmt.Printf("- Robustness pass %d: residual scale %.6g, weights kept\n", pass.Pass, pass.Scale)
			continue
		}
		fmt.Printf("- Robustness pass %d: residual scale %.6g, %d samples rejected\n", pass.Pass, pass.Scale, pass.Zeroed)
	}
	fmt.Println()
	fmt.Print(report.Summarize(res.Values, res.Weights))

	if cfg.Output.SaveImages {
		if g == nil {
			log.Printf("Warning: images need a grid; skipped because -query was given")
		} else if err := saveSlices(g, res.Values, cfg.Output.ImageDir); err != nil {
			log.Printf("Warning: Failed to save grid slices: %v", err)
		}
	}

	if *saveDB != "" {
		ds.Name = *datasetName
		if err := storeRun(ctx, *saveDB, ds, result); err != nil {
			log.Fatalf("Failed to store results: %v", err)
		}
		fmt.Printf("\nInput and result stored as %q in %s\n", ds.Name, *saveDB)
	}
}

// loadDataset reads samples from a CSV file or a sqlite:<path> database
func loadDataset(ctx context.Context, input, name string, header bool) (*models.Dataset, error) {
	if path, ok := strings.CutPrefix(input, sqlitePrefix); ok {
		db, err := dataset.Open(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		store, err := dataset.NewStore(db)
		if err != nil {
			return nil, err
		}
		return store.LoadDataset(ctx, name)
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := dataset.ReadCSV(f, header)
	if err != nil {
		return nil, err
	}
	ds.Name = name
	return ds, nil
}

// writeOutput writes the estimates with a x1..xd,value header
func writeOutput(path string, res *models.Result, dims, precision int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	cols := make([]string, 0, dims+1)
	for d := 1; d <= dims; d++ {
		cols = append(cols, fmt.Sprintf("x%d", d))
	}
	cols = append(cols, "value")

	if err := dataset.WriteCSV(f, res, cols, precision); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// saveSlices writes grid slices along every axis of a 2-D or 3-D grid
func saveSlices(g *grid.Grid, values []float64, dir string) error {
	viewer, err := visualization.NewViewer(values, g.Shape()...)
	if err != nil {
		return err
	}

	axes := []string{"z"}
	if g.Dims() == 3 {
		axes = []string{"x", "y", "z"}
	}
	for _, axis := range axes {
		axisDir := filepath.Join(dir, axis)
		fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)
		if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
			return fmt.Errorf("%s axis: %w", axis, err)
		}
	}
	return nil
}

// storeRun saves the input samples and the result in a SQLite database and
// reads the result back to confirm every estimate and weight was stored
func storeRun(ctx context.Context, target string, ds *models.Dataset, res *models.Result) error {
	path := strings.TrimPrefix(target, sqlitePrefix)
	db, err := dataset.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := dataset.NewStore(db)
	if err != nil {
		return err
	}
	if err := store.SaveDataset(ctx, ds); err != nil {
		return err
	}
	if err := store.SaveResult(ctx, ds.Name, res); err != nil {
		return err
	}

	stored, err := store.LoadResult(ctx, ds.Name)
	if err != nil {
		return err
	}
	if len(stored.Values) != len(res.Values) || len(stored.Weights) != len(res.Weights) {
		return fmt.Errorf("stored %d estimates and %d weights, expected %d and %d",
			len(stored.Values), len(stored.Weights), len(res.Values), len(res.Weights))
	}
	return nil
}
