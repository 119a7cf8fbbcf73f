package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-image-forensics/internal/analyzer"
	"go-image-forensics/internal/config"
	"go-image-forensics/internal/factory"
	"go-image-forensics/internal/logger"
	"go-image-forensics/pkg/models"
	"go-image-forensics/pkg/services"
)

const sourceFile = "file"

var (
	approveColor = color.New(color.FgGreen).SprintFunc()
	reviewColor  = color.New(color.FgYellow).SprintFunc()
	alertColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	labelColor   = color.New(color.FgBlue).SprintFunc()
)

type analyzeFlags struct {
	jsonOutput      bool
	parallel        bool
	elaQuality      int
	compoundBonus   float64
	reviewCut       float64
	highPriorityCut float64
	maxBytes        int64
	logLevel        string
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "forensics",
		Short:         "Score images for signs of editing or synthesis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.AddCommand(newAnalyzeCmd(out, errOut))
	return root
}

func newAnalyzeCmd(out, errOut io.Writer) *cobra.Command {
	flags := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Analyze local image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.UseText(errOut)
			logger.SetLevel(flags.logLevel)

			opts, err := optionsFromFlags(cmd, flags)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), out, opts, flags, args)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.jsonOutput, "json", false, "print results as JSON")
	f.BoolVar(&flags.parallel, "parallel", true, "run the signal analyzers concurrently")
	f.IntVar(&flags.elaQuality, "ela-quality", 0, "JPEG quality used for error level analysis")
	f.Float64Var(&flags.compoundBonus, "compound-bonus", 0, "score added when the compound pattern fires")
	f.Float64Var(&flags.reviewCut, "review-cut-point", 0, "lowest score routed to manual review")
	f.Float64Var(&flags.highPriorityCut, "high-priority-cut-point", 0, "scores above this are high priority")
	f.Int64Var(&flags.maxBytes, "max-bytes", 10*1024*1024, "largest image file accepted")
	f.StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	return cmd
}

// optionsFromFlags layers explicitly set flags over the FORENSICS_* environment
func optionsFromFlags(cmd *cobra.Command, flags *analyzeFlags) (analyzer.AnalysisOptions, error) {
	opts := config.AnalysisOptionsFromEnv(analyzer.DefaultOptions())
	changed := cmd.Flags().Changed

	if changed("parallel") {
		opts.UseWorkerPool = flags.parallel
	}
	if changed("ela-quality") {
		opts = opts.WithRecompressionQuality(flags.elaQuality)
	}
	if changed("compound-bonus") {
		opts = opts.WithCompoundBonus(flags.compoundBonus)
	}
	if changed("review-cut-point") {
		opts.ReviewCutPoint = flags.reviewCut
	}
	if changed("high-priority-cut-point") {
		opts.HighPriorityCutPoint = flags.highPriorityCut
	}

	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid analysis options: %w", err)
	}
	return opts, nil
}

func runAnalyze(ctx context.Context, out io.Writer, opts analyzer.AnalysisOptions, flags *analyzeFlags, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	components := factory.NewComponentFactory(0, flags.maxBytes)
	files, err := components.StorageFactory.CreateStorage(factory.LocalStorage)
	if err != nil {
		return err
	}
	imageAnalyzer, err := components.AnalyzerFactory.CreateAnalyzer(opts)
	if err != nil {
		return err
	}
	defer imageAnalyzer.Close()

	failed := 0
	for _, path := range paths {
		log := logger.WithFields(logrus.Fields{"file": path})

		raw, err := files.FetchImage(ctx, path)
		if err != nil {
			log.WithError(err).Error("Failed to read image")
			failed++
			continue
		}

		result, err := imageAnalyzer.Analyze(raw)
		if err != nil {
			log.WithError(err).Error("Failed to analyze image")
			failed++
			continue
		}

		resp := services.NewForensicsResponse(uuid.NewString(), sourceFile, result, imageAnalyzer.Options())
		if len(resp.DegradedSignals) > 0 {
			log.WithField("degraded_signals", resp.DegradedSignals).Warn("Some signals could not be computed")
		}

		if flags.jsonOutput {
			err = writeJSON(out, path, resp)
		} else {
			err = writeReport(out, path, resp)
		}
		if err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be analyzed", failed, len(paths))
	}
	return nil
}

type fileReport struct {
	File string `json:"file"`
	*models.ForensicsResponse
}

func writeJSON(out io.Writer, path string, resp *models.ForensicsResponse) error {
	enc := json.NewEncoder(out)
	return enc.Encode(fileReport{File: path, ForensicsResponse: resp})
}

func writeReport(out io.Writer, path string, resp *models.ForensicsResponse) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s, %dx%d)\n", labelColor("[*]"), path, resp.Format, resp.ImageWidth, resp.ImageHeight)
	fmt.Fprintf(&b, "    score:          %.3f\n", resp.TamperingScore)
	fmt.Fprintf(&b, "    recommendation: %s\n", colorRecommendation(resp.Recommendation))
	if resp.CompoundFired {
		fmt.Fprintf(&b, "    compound rule:  fired (base %.3f)\n", resp.BaseScore)
	}
	for _, line := range resp.Explanation {
		fmt.Fprintf(&b, "    - %s\n", line)
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func colorRecommendation(rec string) string {
	switch analyzer.Recommendation(rec) {
	case analyzer.AutoApprove:
		return approveColor(rec)
	case analyzer.LowPriorityReview:
		return reviewColor(rec)
	default:
		return alertColor(rec)
	}
}
