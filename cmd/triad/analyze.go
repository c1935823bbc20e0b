package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"triadbalance/adapters/excel"
	"triadbalance/domain/core"
	"triadbalance/internal"
	"triadbalance/internal/config"
	"triadbalance/internal/errors"
	"triadbalance/internal/pipeline"

	"github.com/spf13/cobra"
)

type analyzeFlags struct {
	window        int
	method        string
	missing       string
	rois          []int
	workers       int
	surrogates    int
	seed          uint64
	streaming     bool
	convention    string
	keepZero      bool
	keepUndefined bool
	minAbs        float64
	maxSubjects   int
	transpose     bool
	sheet         string
	out           string
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze [timeseries-file...]",
		Short: "Compute balance lifetimes, peak energies and transitions per subject",
		Long: `Analyze one or more region × time series files (CSV or XLSX), one subject per file.

Each file holds one row per region. An optional header row and an optional
leading column of region labels are skipped. Empty cells and NaN/NA read as
missing samples.

Example: triad analyze sub-01.csv sub-02.csv --window 30 --rois 1,4,7,9 --surrogates 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, &cfg.Analysis); err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args, cfg.Analysis, f, logger)
		},
	}

	cmd.Flags().IntVar(&f.window, "window", 30, "Sliding window length in samples")
	cmd.Flags().StringVar(&f.method, "method", "pearson", "Correlation method: pearson|spearman")
	cmd.Flags().StringVar(&f.missing, "missing", "pairwise", "Missing-sample policy: pairwise|complete")
	cmd.Flags().IntSliceVar(&f.rois, "rois", nil, "Subnetwork regions, 1-based (e.g. 1,4,7)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Worker goroutines per subject (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&f.surrogates, "surrogates", 0, "Phase-randomized surrogate replicas per subject")
	cmd.Flags().Uint64Var(&f.seed, "seed", 42, "Base seed for surrogate generation")
	cmd.Flags().BoolVar(&f.streaming, "streaming", false, "Aggregate per triangle without holding the full tensor")
	cmd.Flags().StringVar(&f.convention, "convention", "raw", "Code convention in output: raw|remapped")
	cmd.Flags().BoolVar(&f.keepZero, "keep-zero-signs", false, "Classify triangles with zero-signed edges by their raw sign sum")
	cmd.Flags().BoolVar(&f.keepUndefined, "keep-undefined", false, "Keep undefined runs as segments instead of dropping them into dropped_windows")
	cmd.Flags().Float64Var(&f.minAbs, "min-abs", 0, "Edges with |r| below this value get sign 0")
	cmd.Flags().IntVar(&f.maxSubjects, "max-subjects", 2, "Subjects analyzed concurrently")
	cmd.Flags().BoolVar(&f.transpose, "transpose", false, "Input files are time × region")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write JSON results to this file instead of stdout")

	return cmd
}

// apply copies explicitly set flags over the loaded configuration
func (f analyzeFlags) apply(cmd *cobra.Command, a *config.AnalysisConfig) error {
	changed := cmd.Flags().Changed
	if changed("window") {
		a.WindowLength = f.window
	}
	if changed("method") {
		a.Method = f.method
	}
	if changed("missing") {
		a.Missing = f.missing
	}
	if changed("rois") {
		rois, err := zeroBased(f.rois)
		if err != nil {
			return err
		}
		a.Subnetwork = rois
	}
	if changed("workers") {
		a.Workers = f.workers
	}
	if changed("surrogates") {
		a.Surrogates = f.surrogates
	}
	if changed("seed") {
		a.Seed = f.seed
	}
	if changed("streaming") {
		a.Streaming = f.streaming
	}
	if changed("convention") {
		a.Convention = f.convention
	}
	if changed("keep-zero-signs") {
		a.KeepZeroSigns = f.keepZero
	}
	if changed("keep-undefined") {
		a.DropUndefined = !f.keepUndefined
	}
	if changed("min-abs") {
		a.MinAbs = f.minAbs
	}
	if changed("max-subjects") {
		a.MaxSubjects = f.maxSubjects
	}
	return a.Validate()
}

// zeroBased converts 1-based region numbers from the command line
func zeroBased(rois []int) ([]int, error) {
	out := make([]int, len(rois))
	for i, r := range rois {
		if r < 1 {
			return nil, errors.InvalidParameter("--rois are 1-based, got %d", r)
		}
		out[i] = r - 1
	}
	return out, nil
}

func runAnalyze(ctx context.Context, stdout io.Writer, files []string, cfg config.AnalysisConfig, f analyzeFlags, logger *internal.Logger) error {
	subjects := make([]*pipeline.Subject, 0, len(files))
	for _, file := range files {
		reader := excel.NewDataReader(file)
		reader.Transposed = f.transpose
		reader.Sheet = f.sheet

		ts, err := reader.ReadMatrix()
		if err != nil {
			return err
		}
		id, err := subjectID(file)
		if err != nil {
			return err
		}
		subject, err := pipeline.NewSubject(id, ts.Data, cfg, logger)
		if err != nil {
			return err
		}
		subjects = append(subjects, subject)
	}

	reports, err := pipeline.NewBatch(cfg.MaxSubjects, logger).Run(ctx, subjects)
	if err != nil {
		return err
	}

	summaries := make([]pipeline.Summary, len(reports))
	for i, r := range reports {
		summaries[i] = r.Summary()
	}
	raw, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode results")
	}

	if f.out == "" {
		_, err = fmt.Fprintln(stdout, string(raw))
		return err
	}
	if err := os.WriteFile(f.out, append(raw, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", f.out)
	}
	logger.Info("wrote %d subject results to %s", len(summaries), f.out)
	return nil
}

// subjectID names a subject after its file, without the extension
func subjectID(file string) (core.SubjectID, error) {
	base := filepath.Base(file)
	id, err := core.ParseSubjectID(strings.TrimSuffix(base, filepath.Ext(base)))
	if err != nil {
		return "", errors.WithCode(errors.CodeInvalidInput, errors.Wrapf(err, "file %s", file))
	}
	return id, nil
}
