package eval

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ClassMetrics is the per-class slice of the report.
type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report bundles the evaluation metrics. AUC entries are NaN for
// classes that cannot be scored (absent from the labels, or the only
// class present); Warnings names them.
type Report struct {
	Accuracy  float64
	Kappa     float64
	MacroAUC  float64
	AUC       []float64
	Confusion [][]int // [true][predicted]
	PerClass  []ClassMetrics
	Warnings  []string
}

// Compute derives the full metric report from collected predictions.
func Compute(p *Predictions, numClasses int) (*Report, error) {
	if numClasses < 2 {
		return nil, errors.Errorf("need at least 2 classes, got %d", numClasses)
	}
	if len(p.Labels) != len(p.Preds) || len(p.Labels) != len(p.Probs) {
		return nil, errors.Errorf("inconsistent prediction lengths: %d labels, %d preds, %d prob rows",
			len(p.Labels), len(p.Preds), len(p.Probs))
	}
	for i, l := range p.Labels {
		if l < 0 || l >= int64(numClasses) {
			return nil, errors.Errorf("sample %d: label %d out of range [0,%d)", i, l, numClasses)
		}
	}

	report := &Report{
		Confusion: ConfusionMatrix(p.Labels, p.Preds, numClasses),
	}
	report.Accuracy = accuracyFrom(report.Confusion)
	report.Kappa = kappaFrom(report.Confusion)
	report.PerClass = perClassFrom(report.Confusion)
	report.AUC, report.MacroAUC, report.Warnings = ovrAUC(p, numClasses)
	return report, nil
}

// ConfusionMatrix counts predictions per true class; rows are true
// labels, columns are predicted labels.
func ConfusionMatrix(labels, preds []int64, numClasses int) [][]int {
	m := make([][]int, numClasses)
	for i := range m {
		m[i] = make([]int, numClasses)
	}
	for i, l := range labels {
		m[l][preds[i]]++
	}
	return m
}

func accuracyFrom(confusion [][]int) float64 {
	total, diag := 0, 0
	for i, row := range confusion {
		for j, c := range row {
			total += c
			if i == j {
				diag += c
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(diag) / float64(total)
}

// kappaFrom computes Cohen's kappa: observed agreement corrected for
// the agreement expected from the marginals alone. A degenerate table
// where chance agreement is 1 scores 0.
func kappaFrom(confusion [][]int) float64 {
	n := 0
	rowSums := make([]int, len(confusion))
	colSums := make([]int, len(confusion))
	po := 0.0
	for i, row := range confusion {
		for j, c := range row {
			n += c
			rowSums[i] += c
			colSums[j] += c
		}
	}
	if n == 0 {
		return 0
	}
	pe := 0.0
	for i := range confusion {
		po += float64(confusion[i][i]) / float64(n)
		pe += float64(rowSums[i]) * float64(colSums[i]) / float64(n) / float64(n)
	}
	if pe >= 1 {
		return 0
	}
	return (po - pe) / (1 - pe)
}

func perClassFrom(confusion [][]int) []ClassMetrics {
	out := make([]ClassMetrics, len(confusion))
	for k := range confusion {
		tp := confusion[k][k]
		support, predicted := 0, 0
		for j := range confusion {
			support += confusion[k][j]
			predicted += confusion[j][k]
		}

		m := ClassMetrics{Support: support}
		if predicted > 0 {
			m.Precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			m.Recall = float64(tp) / float64(support)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		out[k] = m
	}
	return out
}

// ovrAUC scores each class one-vs-rest from the probability rows. The
// macro average skips unscorable classes; if none are scorable the
// macro AUC is NaN.
func ovrAUC(p *Predictions, numClasses int) (auc []float64, macro float64, warnings []string) {
	auc = make([]float64, numClasses)
	scored := 0
	for k := 0; k < numClasses; k++ {
		positives := 0
		for _, l := range p.Labels {
			if l == int64(k) {
				positives++
			}
		}
		if positives == 0 || positives == len(p.Labels) {
			auc[k] = math.NaN()
			warnings = append(warnings, fmt.Sprintf("class %d has no %s samples; AUC undefined",
				k, map[bool]string{true: "positive", false: "negative"}[positives == 0]))
			continue
		}

		type rankRow struct {
			score float64
			pos   bool
		}
		rows := make([]rankRow, len(p.Labels))
		for i := range p.Labels {
			rows[i] = rankRow{score: p.Probs[i][k], pos: p.Labels[i] == int64(k)}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].score < rows[j].score })

		y := make([]float64, len(rows))
		classes := make([]bool, len(rows))
		for i, r := range rows {
			y[i] = r.score
			classes[i] = r.pos
		}
		tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
		auc[k] = integrate.Trapezoidal(fpr, tpr)
	}

	macro = 0.0
	for _, a := range auc {
		if !math.IsNaN(a) {
			macro += a
			scored++
		}
	}
	if scored == 0 {
		return auc, math.NaN(), warnings
	}
	return auc, macro / float64(scored), warnings
}

// Format renders the report as a human-readable block with one line per
// class. Class names beyond len(classNames) fall back to the index.
func (r *Report) Format(classNames []string) string {
	name := func(k int) string {
		if k < len(classNames) {
			return classNames[k]
		}
		return fmt.Sprintf("class %d", k)
	}

	s := fmt.Sprintf("accuracy: %.4f\nkappa:    %.4f\nmacro AUC: %.4f\n", r.Accuracy, r.Kappa, r.MacroAUC)
	s += fmt.Sprintf("%-10s %9s %9s %9s %9s %8s\n", "", "precision", "recall", "f1", "auc", "support")
	for k, m := range r.PerClass {
		s += fmt.Sprintf("%-10s %9.4f %9.4f %9.4f %9.4f %8d\n",
			name(k), m.Precision, m.Recall, m.F1, r.AUC[k], m.Support)
	}
	for _, w := range r.Warnings {
		s += "warning: " + w + "\n"
	}
	return s
}
