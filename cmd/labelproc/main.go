// Package main provides the labelproc CLI: one pipeline run from a label
// PDF plus an order spreadsheet to a re-composited label document.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lightmkt/labelproc/ident"
	"github.com/lightmkt/labelproc/locator"
	"github.com/lightmkt/labelproc/observability"
	"github.com/lightmkt/labelproc/ocr/tesseract"
	"github.com/lightmkt/labelproc/pipeline"
)

var (
	sheetPath  string
	outputPath string
	scheme     string
	policy     string
	useOCR     bool
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "labelproc [labels.pdf]",
		Short: "Extract shipping labels and re-compose them with order data",
		Long: `labelproc locates the 4 label quadrants on every page of a label PDF,
joins each one with its order spreadsheet row by shipment identifier and
writes a new document with one 100x150 mm page per label.`,
		Args: cobra.ExactArgs(1),
		RunE: run,
	}

	rootCmd.Flags().StringVarP(&sheetPath, "sheet", "s", "", "Order spreadsheet (.xlsx), required")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "labels_out.pdf", "Output PDF path")
	rootCmd.Flags().StringVar(&scheme, "scheme", "tracking", "Identifier scheme: tracking, order")
	rootCmd.Flags().StringVar(&policy, "policy", "emit-all", "Unmatched quadrants: emit-all, suppress-unmatched")
	rootCmd.Flags().BoolVar(&useOCR, "ocr", false, "Recover identifiers from quadrants without a text layer")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline stages to stderr")
	_ = rootCmd.MarkFlagRequired("sheet")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", pdfPath)
	}

	cfg := pipeline.DefaultConfig()
	switch scheme {
	case "tracking":
		cfg.Scheme = ident.SchemeTracking
	case "order":
		cfg.Scheme = ident.SchemeOrder
	default:
		return fmt.Errorf("invalid scheme: %s (must be tracking or order)", scheme)
	}
	switch policy {
	case "emit-all":
		cfg.Policy = locator.PolicyEmitAll
	case "suppress-unmatched":
		cfg.Policy = locator.PolicySuppressUnmatched
	default:
		return fmt.Errorf("invalid policy: %s (must be emit-all or suppress-unmatched)", policy)
	}
	if useOCR {
		cfg.OCREngine = tesseract.New()
	}

	var opts []pipeline.Option
	if verbose {
		log := slog.New(slog.NewTextHandler(os.Stderr, nil))
		opts = append(opts, pipeline.WithLogger(observability.NewSlog(log)))
	}
	p := pipeline.New(cfg, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	report, err := p.Run(ctx, pdfPath, sheetPath, out)
	if err != nil {
		os.Remove(outputPath)
		return err
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
