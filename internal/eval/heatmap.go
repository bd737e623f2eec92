package eval

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// HeatmapRenderer renders a confusion matrix. The text renderer below
// is the default; alternative renderers (image output, web UI) plug in
// through this interface.
type HeatmapRenderer interface {
	Render(confusion [][]int, classNames []string) error
}

// TextHeatmap renders the confusion matrix as a shaded character grid,
// one row per true class, each cell scaled by its share of the row.
type TextHeatmap struct {
	W io.Writer
}

var heatmapShades = []rune(" .:-=+*#%@")

// Render writes the heatmap. Rows with zero support render as blanks.
func (h TextHeatmap) Render(confusion [][]int, classNames []string) error {
	name := func(k int) string {
		if k < len(classNames) {
			return classNames[k]
		}
		return fmt.Sprintf("class %d", k)
	}

	if _, err := fmt.Fprintf(h.W, "%-10s", "true\\pred"); err != nil {
		return errors.Wrap(err, "render heatmap")
	}
	for j := range confusion {
		if _, err := fmt.Fprintf(h.W, " %8s", name(j)); err != nil {
			return errors.Wrap(err, "render heatmap")
		}
	}
	if _, err := fmt.Fprintln(h.W); err != nil {
		return errors.Wrap(err, "render heatmap")
	}

	for i, row := range confusion {
		rowSum := 0
		for _, c := range row {
			rowSum += c
		}
		if _, err := fmt.Fprintf(h.W, "%-10s", name(i)); err != nil {
			return errors.Wrap(err, "render heatmap")
		}
		for _, c := range row {
			shade := heatmapShades[0]
			if rowSum > 0 {
				idx := c * (len(heatmapShades) - 1) / rowSum
				shade = heatmapShades[idx]
			}
			if _, err := fmt.Fprintf(h.W, " %5d %c ", c, shade); err != nil {
				return errors.Wrap(err, "render heatmap")
			}
		}
		if _, err := fmt.Fprintln(h.W); err != nil {
			return errors.Wrap(err, "render heatmap")
		}
	}
	return nil
}
