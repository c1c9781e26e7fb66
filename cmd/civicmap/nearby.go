package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/civicmap/internal/model"
	"github.com/nao1215/civicmap/internal/nearby"
	"github.com/nao1215/civicmap/internal/report"
)

// NewNearbyCmd creates the nearby command.
func NewNearbyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nearby LAT,LON [LAT,LON...]",
		Short: "Show clustered reports around one or more points",
		Long: `Show the heatmap view around one or more points, read directly from the
local database.

Each report within the radius is listed with its distance and the
severity of the density cluster it belongs to. Several points are
queried concurrently and reported in argument order.`,
		Example: `  # Reports within 10 km of a point
  civicmap nearby 12.905,77.605

  # Markdown summary for two wards, written to a file
  civicmap nearby 12.905,77.605 12.97,77.59 --radius 3 --format markdown -o wards.md

  # JSON on stdout plus a Markdown copy
  civicmap nearby 12.905,77.605 --format json --markdown-file summary.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: runNearbyCmd,
	}

	cmd.Flags().Float64P("radius", "r", model.DefaultRadiusKM, "Search radius in kilometers (0.1 < r <= 100)")
	cmd.Flags().StringP("format", "f", string(report.FormatText), "Output format: text, json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write output to file instead of stdout")
	cmd.Flags().String("markdown-file", "", "Also write a Markdown summary to this file")
	cmd.Flags().Bool("show-empty", false, "Print sections that have no entries (text format)")

	return cmd
}

// runNearbyCmd executes the nearby command.
func runNearbyCmd(cmd *cobra.Command, args []string) error {
	radius, _ := cmd.Flags().GetFloat64("radius")
	queries := make([]model.NearbyQuery, 0, len(args))
	for _, arg := range args {
		lat, lon, err := parsePoint(arg)
		if err != nil {
			return err
		}
		q, err := nearby.NewQuery(lat, lon, radius)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cmd, cfg, slog.LevelWarn)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := newNearby(cfg, db, logger).QueryMany(cmdContext(cmd), queries)
	if err != nil {
		return err
	}

	writer, closeAll, err := nearbyWriter(cmd)
	if err != nil {
		return err
	}
	for _, result := range results {
		if _, err := writer.WriteNearby(result); err != nil {
			_ = closeAll()
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return closeAll()
}

// nearbyWriter builds the writer for --format and --output, teeing a
// Markdown copy when --markdown-file is set.
func nearbyWriter(cmd *cobra.Command) (report.Writer, func() error, error) {
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	markdownPath, _ := cmd.Flags().GetString("markdown-file")
	showEmpty, _ := cmd.Flags().GetBool("show-empty")

	out, closeOut, err := openOutput(outputPath, cmd.OutOrStdout())
	if err != nil {
		return nil, nil, err
	}
	var primary report.Writer
	if isTextFormat(format) {
		primary = report.NewSimpleWriter(out,
			report.WithShowEmpty(showEmpty),
			report.WithVerbose(getVerboseFlag(cmd)),
		)
	} else {
		primary, err = report.NewWriter(format, out)
		if err != nil {
			_ = closeOut()
			return nil, nil, err
		}
	}
	if markdownPath == "" {
		return primary, closeOut, nil
	}

	mdOut, closeMD, err := openOutput(markdownPath, nil)
	if err != nil {
		_ = closeOut()
		return nil, nil, err
	}
	closeAll := func() error {
		return errors.Join(closeOut(), closeMD())
	}
	return report.NewMultiWriter(primary, report.NewMarkdownWriter(mdOut)), closeAll, nil
}

// isTextFormat reports whether format selects the text writer.
func isTextFormat(format string) bool {
	f := report.Format(strings.ToLower(strings.TrimSpace(format)))
	return f == "" || f == report.FormatText
}

// parsePoint parses "lat,lon".
func parsePoint(s string) (float64, float64, error) {
	latText, lonText, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, model.NewValidationError("point", fmt.Sprintf("%q is not LAT,LON", s))
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return 0, 0, model.NewValidationError("lat", fmt.Sprintf("%q is not a number", latText))
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return 0, 0, model.NewValidationError("lon", fmt.Sprintf("%q is not a number", lonText))
	}
	return lat, lon, nil
}
