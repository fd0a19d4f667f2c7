// Package main provides the csvview command line tool - indexing, inspecting
// and exporting large CSV files without loading them into memory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/csvview/csvview/internal/analysis"
	"github.com/csvview/csvview/internal/archive"
	"github.com/csvview/csvview/internal/document"
	"github.com/csvview/csvview/internal/export"
	"github.com/csvview/csvview/internal/overlay"
	"github.com/csvview/csvview/internal/server"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Version information
const (
	Version   = "0.9.2"
	BuildDate = "2026-08-14"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "csvview: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verbose := false
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-v" || args[0] == "--verbose") {
		verbose = true
		args = args[1:]
	}
	logger := newLogger(verbose)
	slog.SetDefault(logger)

	if len(args) < 1 {
		printUsage()
		return errors.New("missing command")
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "export":
		return runExport(ctx, args, logger)
	case "row":
		return runRow(ctx, args, logger)
	case "set":
		return runSet(ctx, args, logger)
	case "analyze":
		return runAnalyze(ctx, args, logger)
	case "stats":
		return runStats(ctx, args, logger)
	case "save":
		return runSave(ctx, args, logger)
	case "serve":
		return runServe(ctx, args, logger)
	case "pack":
		return runPack(ctx, args, logger)
	case "unpack":
		return runUnpack(args)
	case "version":
		fmt.Printf("csvview v%s (%s)\n", Version, BuildDate)
		return nil
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

func printUsage() {
	fmt.Println(`csvview - Large CSV Viewer Engine

Usage:
    csvview [-v] <command> [arguments]

Commands:
    export   Stream the file (with pending edits) to JSON
    row      Print one row as a JSON object
    set      Edit a cell, persisting to the session sidecar
    analyze  Profile column types and statistics
    stats    Show row/column counts and scan anomalies
    save     Bake pending edits into a CSV file
    serve    Start the Unix socket viewer daemon
    pack     Bundle CSV and metadata into a .csvz archive
    unpack   Extract the CSV from a .csvz archive
    version  Show version
    help     Show this help

Use "csvview <command> --help" for command-specific options.`)
}

// openDocument opens the CSV and applies any session sidecar left by "set".
func openDocument(ctx context.Context, path, separator string, noHeader bool, logger *slog.Logger) (*document.Document, error) {
	if path == "" {
		return nil, errors.New("--csv is required")
	}
	if len(separator) != 1 {
		return nil, fmt.Errorf("separator must be a single byte, got %q", separator)
	}
	doc, err := document.Open(ctx, document.Config{
		Path:      path,
		Separator: separator[0],
		NoHeader:  noHeader,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	if err := doc.Overlay().LoadSession(overlay.SidecarPath(path)); err != nil {
		_ = doc.Close()
		return nil, err
	}
	return doc, nil
}

// runExport handles the export command
func runExport(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	csvPath := fs.String("csv", "", "Path to CSV file")
	output := fs.String("output", "", "Output file (default stdout)")
	separator := fs.String("separator", ",", "CSV separator")
	noHeader := fs.Bool("no-header", false, "Treat the first row as data")
	_ = fs.Parse(args)

	doc, err := openDocument(ctx, *csvPath, *separator, *noHeader, logger)
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	if *output == "" {
		return export.Export(os.Stdout, doc)
	}

	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	if err := export.Export(f, doc); err != nil {
		_ = f.Close()
		_ = os.Remove(*output)
		return err
	}
	return f.Close()
}

// runRow handles the row command
func runRow(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("row", flag.ExitOnError)
	csvPath := fs.String("csv", "", "Path to CSV file")
	row := fs.Int("row", 1, "Row number (0 is the header)")
	separator := fs.String("separator", ",", "CSV separator")
	noHeader := fs.Bool("no-header", false, "Treat the first row as data")
	_ = fs.Parse(args)

	doc, err := openDocument(ctx, *csvPath, *separator, *noHeader, logger)
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	if err := export.ExportRow(os.Stdout, doc, *row); err != nil {
		return err
	}
	fmt.Println()
	return nil
}

// runSet handles the set command
func runSet(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	csvPath := fs.String("csv", "", "Path to CSV file")
	row := fs.Int("row", -1, "Row number (0 is the header)")
	col := fs.Int("col", -1, "Column number")
	value := fs.String("value", "", "New cell value")
	clear := fs.Bool("clear", false, "Clear the pending edit instead of setting one")
	separator := fs.String("separator", ",", "CSV separator")
	noHeader := fs.Bool("no-header", false, "Treat the first row as data")
	_ = fs.Parse(args)

	if *row < 0 || *col < 0 {
		return errors.New("--row and --col are required")
	}

	doc, err := openDocument(ctx, *csvPath, *separator, *noHeader, logger)
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	if *clear {
		doc.ClearEdit(*row, *col)
	} else if err := doc.Set(*row, *col, *value); err != nil {
		return err
	}
	return doc.Overlay().SaveSession(overlay.SidecarPath(*csvPath))
}

// runAnalyze handles the analyze command
func runAnalyze(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	csvPath := fs.String("csv", "", "Path to CSV file")
	col := fs.Int("col", -1, "Column to analyze (-1 = all)")
	separator := fs.String("separator", ",", "CSV separator")
	noHeader := fs.Bool("no-header", false, "Treat the first row as data")
	_ = fs.Parse(args)

	doc, err := openDocument(ctx, *csvPath, *separator, *noHeader, logger)
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if *col >= 0 {
		profile, err := analysis.AnalyzeColumn(doc, *col)
		if err != nil {
			return err
		}
		return enc.Encode(profile)
	}
	profiles, err := analysis.Analyze(doc)
	if err != nil {
		return err
	}
	return enc.Encode(profiles)
}

// runStats handles the stats command
func runStats(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	csvPath := fs.String("csv", "", "Path to CSV file")
	separator := fs.String("separator", ",", "CSV separator")
	noHeader := fs.Bool("no-header", false, "Treat the first row as data")
	_ = fs.Parse(args)

	doc, err := openDocument(ctx, *csvPath, *separator, *noHeader, logger)
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	anomalies := doc.Anomalies()
	out := map[string]any{
		"rows":      doc.Rows(),
		"dataRows":  doc.DataRows(),
		"columns":   doc.Columns(),
		"edits":     doc.Overlay().Len(),
		"anomalies": anomalies,
		"widths":    doc.EstimateColumnWidths(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// runSave handles the save command
func runSave(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	csvPath := fs.String("csv", "", "Path to CSV file")
	output := fs.String("output", "", "Destination (default: overwrite the source)")
	keepSession := fs.Bool("keep-session", false, "Keep the session sidecar after baking")
	separator := fs.String("separator", ",", "CSV separator")
	noHeader := fs.Bool("no-header", false, "Treat the first row as data")
	_ = fs.Parse(args)

	doc, err := openDocument(ctx, *csvPath, *separator, *noHeader, logger)
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	dest := *output
	if dest == "" {
		dest = *csvPath
	}
	if err := doc.SaveFile(dest); err != nil {
		return err
	}
	// Edits are baked in; the sidecar would re-apply them on top otherwise.
	if !*keepSession && dest == *csvPath {
		if err := os.Remove(overlay.SidecarPath(*csvPath)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	logger.Info("saved", "path", dest, "rows", doc.Rows())
	return nil
}

// runServe handles the serve command
func runServe(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	csvPath := fs.String("csv", "", "Path to CSV file")
	socket := fs.String("socket", "", "Socket path (default /tmp/csvview.sock)")
	workers := fs.Int("workers", 50, "Max concurrent connections")
	separator := fs.String("separator", ",", "CSV separator")
	noHeader := fs.Bool("no-header", false, "Treat the first row as data")
	_ = fs.Parse(args)

	if len(*separator) != 1 {
		return fmt.Errorf("separator must be a single byte, got %q", *separator)
	}
	return server.RunDaemon(ctx, server.DaemonConfig{
		SocketPath:     *socket,
		CsvPath:        *csvPath,
		Separator:      (*separator)[0],
		NoHeader:       *noHeader,
		MaxConcurrency: *workers,
		Logger:         logger,
	})
}

// runPack handles the pack command
func runPack(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	csvPath := fs.String("csv", "", "Path to CSV file")
	output := fs.String("output", "", "Archive path (default <csv>"+archive.Ext+")")
	separator := fs.String("separator", ",", "CSV separator")
	noHeader := fs.Bool("no-header", false, "Treat the first row as data")
	_ = fs.Parse(args)

	doc, err := openDocument(ctx, *csvPath, *separator, *noHeader, logger)
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	if *output == "" {
		*output = *csvPath + archive.Ext
	}
	if err := archive.Save(*output, doc, archive.ViewSettings{ZoomLevel: 1}); err != nil {
		return err
	}
	logger.Info("archive written", "path", *output, "rows", doc.Rows())
	return nil
}

// runUnpack handles the unpack command
func runUnpack(args []string) error {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	archivePath := fs.String("archive", "", "Path to "+archive.Ext+" archive")
	output := fs.String("output", "", "Where to write the extracted CSV")
	_ = fs.Parse(args)

	if *archivePath == "" || *output == "" {
		return errors.New("--archive and --output are required")
	}
	meta, err := archive.Extract(*archivePath, *output)
	if err != nil {
		return err
	}
	slog.Info("archive extracted", "path", *output, "columns", len(meta.ColumnNames))
	return nil
}
