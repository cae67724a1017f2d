package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ClassMetrics are the scores of one label.
type ClassMetrics struct {
	Label     int     `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Averages aggregate precision, recall and F1 across labels.
type Averages struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Report is a classification report. A ratio whose denominator is zero is
// reported as 1.
type Report struct {
	Accuracy    float64        `json:"accuracy"`
	Classes     []ClassMetrics `json:"classes"`
	MacroAvg    Averages       `json:"macro_avg"`
	WeightedAvg Averages       `json:"weighted_avg"`
	Support     int            `json:"support"`
}

// Evaluate scores predictions against true labels. Labels appearing in
// either slice are reported, sorted ascending.
func Evaluate(yTrue, yPred []int) (Report, error) {
	if len(yTrue) != len(yPred) {
		return Report{}, fmt.Errorf("evaluate: %d labels, %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Report{}, errors.New("evaluate: no samples")
	}

	labels := uniqueSorted(append(append([]int{}, yTrue...), yPred...))
	tp := make(map[int]int, len(labels))
	fp := make(map[int]int, len(labels))
	fn := make(map[int]int, len(labels))
	correct := 0
	for i, t := range yTrue {
		p := yPred[i]
		if t == p {
			tp[t]++
			correct++
			continue
		}
		fp[p]++
		fn[t]++
	}

	n := len(yTrue)
	r := Report{Accuracy: float64(correct) / float64(n), Support: n}
	for _, l := range labels {
		m := ClassMetrics{
			Label:     l,
			Precision: ratio(tp[l], tp[l]+fp[l]),
			Recall:    ratio(tp[l], tp[l]+fn[l]),
			F1:        ratio(2*tp[l], 2*tp[l]+fp[l]+fn[l]),
			Support:   tp[l] + fn[l],
		}
		r.Classes = append(r.Classes, m)

		k := float64(len(labels))
		r.MacroAvg.Precision += m.Precision / k
		r.MacroAvg.Recall += m.Recall / k
		r.MacroAvg.F1 += m.F1 / k

		w := float64(m.Support) / float64(n)
		r.WeightedAvg.Precision += m.Precision * w
		r.WeightedAvg.Recall += m.Recall * w
		r.WeightedAvg.F1 += m.F1 * w
	}
	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 1
	}
	return float64(num) / float64(den)
}

// String renders the report in the familiar scikit-learn text layout.
func (r Report) String() string {
	const lastLine = "weighted avg"
	width := len(lastLine)
	for _, c := range r.Classes {
		width = max(width, len(strconv.Itoa(c.Label)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*d  %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Support)
	fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, "macro avg", r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.Support)
	fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, lastLine, r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.Support)
	return b.String()
}
