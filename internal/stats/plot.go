package stats

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotMismatchHistogram renders the run-wide distribution of per-read
// mismatch scores (summed across all canonical ids) to a PNG at path,
// gated by Config.PlotMismatches (SPEC_FULL.md §4.4a). This is an additive
// enrichment with no effect on TSV/FASTQ/stats-file output.
func (t Totals) PlotMismatchHistogram(path string) error {
	maxIdx := 0
	for _, h := range t.Histograms {
		if len(h) > maxIdx {
			maxIdx = len(h)
		}
	}
	if maxIdx == 0 {
		return errors.New("stats: no histogram data to plot")
	}

	totalsByScore := make([]float64, maxIdx)
	for _, h := range t.Histograms {
		for i, v := range h {
			totalsByScore[i] += float64(v)
		}
	}

	p := plot.New()
	p.Title.Text = "Mismatch distribution"
	p.X.Label.Text = "edit distance"
	p.Y.Label.Text = "reads"

	bars := make(plotter.Values, maxIdx)
	copy(bars, totalsByScore)
	hist, err := plotter.NewBarChart(bars, vg.Points(20))
	if err != nil {
		return errors.Wrap(err, "building mismatch bar chart")
	}
	p.Add(hist)

	labels := make([]string, maxIdx)
	for i := range labels {
		labels[i] = scoreLabel(i, maxIdx)
	}
	p.NominalX(labels...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "saving mismatch histogram")
	}
	return nil
}

func scoreLabel(i, maxIdx int) string {
	if i == maxIdx-1 {
		return "over"
	}
	return strconv.Itoa(i)
}

// sortedIDs returns the keys of Totals.Histograms in sorted order, giving
// Summarize a deterministic iteration order.
func (t Totals) sortedIDs() []string {
	ids := make([]string, 0, len(t.Histograms))
	for id := range t.Histograms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
