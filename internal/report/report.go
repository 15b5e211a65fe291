// Package report renders an HTML summary of a completed dedup run from its
// output directory: the files written, the duplicate count, and
// duplicate-frequency heavy-hitters re-estimated from the duplicates.txt
// that dedup --write-duplicates leaves there. BuildSummary does not derive
// a unique-unit count; Summary.UniqueUnits stays zero unless the caller
// sets it.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/sumatoshi-tech/textdedup/pkg/alg/cms"
	"github.com/sumatoshi-tech/textdedup/pkg/alg/mapx"
)

const (
	chartHeight  = "400px"
	pieRadius    = "60%"
	heavyHitterK = 10

	cmsEpsilon = 0.001
	cmsDelta   = 0.01
)

// Summary holds the data a report is built from.
type Summary struct {
	FilesWritten   int
	FilesEmpty     int
	UniqueUnits    int64
	DuplicateUnits int64
	TopDuplicates  []HeavyHitter
}

// HeavyHitter is one duplicate-frequency entry.
type HeavyHitter struct {
	Unit  string
	Count int64
}

// BuildSummary derives a Summary from an already-deduped output directory:
// files written are counted directly, and duplicate frequency is
// re-estimated from duplicates.txt (if present) via a fresh Count-Min
// Sketch, matching the pipeline's own --verify heavy-hitters accounting
// without requiring any state to have been persisted across runs.
func BuildSummary(outputDir string) (Summary, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return Summary{}, fmt.Errorf("report: read output dir: %w", err)
	}

	var summary Summary

	for _, e := range entries {
		if !e.IsDir() && e.Name() != "duplicates.txt" {
			summary.FilesWritten++
		}
	}

	dupPath := filepath.Join(outputDir, "duplicates.txt")

	f, err := os.Open(dupPath)
	if os.IsNotExist(err) {
		return summary, nil
	}

	if err != nil {
		return Summary{}, fmt.Errorf("report: open duplicates file: %w", err)
	}
	defer f.Close()

	hitters, total, err := topHeavyHitters(f)
	if err != nil {
		return Summary{}, err
	}

	summary.DuplicateUnits = total
	summary.TopDuplicates = hitters

	return summary, nil
}

func topHeavyHitters(r io.Reader) ([]HeavyHitter, int64, error) {
	sketch, err := cms.New(cmsEpsilon, cmsDelta)
	if err != nil {
		return nil, 0, fmt.Errorf("report: init heavy-hitters sketch: %w", err)
	}

	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var total int64

	for scanner.Scan() {
		line := scanner.Text()
		sketch.Add([]byte(line), 1)
		seen[line] = struct{}{}
		total++
	}

	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("report: scan duplicates file: %w", err)
	}

	// mapx.SortedKeys gives deterministic input order before the count sort
	// below, so two runs over the same duplicates.txt produce byte-identical
	// reports even when Go's native map iteration order would otherwise vary.
	units := mapx.SortedKeys(seen)

	hitters := make([]HeavyHitter, 0, len(units))
	for _, unit := range units {
		hitters = append(hitters, HeavyHitter{Unit: unit, Count: sketch.Count([]byte(unit))})
	}

	sort.Slice(hitters, func(i, j int) bool {
		if hitters[i].Count != hitters[j].Count {
			return hitters[i].Count > hitters[j].Count
		}

		return hitters[i].Unit < hitters[j].Unit
	})

	if len(hitters) > heavyHitterK {
		hitters = hitters[:heavyHitterK]
	}

	return hitters, total, nil
}

// Render writes an HTML report for summary to w.
func Render(summary Summary, w io.Writer) error {
	page := charts.NewPage()
	page.AddCharts(ratioPie(summary), heavyHitterBar(summary))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("report: render page: %w", err)
	}

	return nil
}

func ratioPie(summary Summary) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Unique vs. Duplicate Units"}),
		charts.WithInitializationOpts(opts.Initialization{Height: chartHeight}),
	)

	pie.AddSeries("Units", []opts.PieData{
		{Name: "Unique", Value: summary.UniqueUnits},
		{Name: "Duplicate", Value: summary.DuplicateUnits},
	}).SetSeriesOptions(
		charts.WithPieChartOpts(opts.PieChart{Radius: pieRadius}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}),
	)

	return pie
}

func heavyHitterBar(summary Summary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Top Duplicate Units"}),
		charts.WithInitializationOpts(opts.Initialization{Height: chartHeight}),
	)

	labels := make([]string, len(summary.TopDuplicates))
	values := make([]opts.BarData, len(summary.TopDuplicates))

	for i, h := range summary.TopDuplicates {
		labels[i] = truncate(h.Unit, 24)
		values[i] = opts.BarData{Value: h.Count}
	}

	bar.SetXAxis(labels).AddSeries("Occurrences", values)

	return bar
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "…"
}
