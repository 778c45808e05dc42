package scoring

// ConfusionMatrix counts predictions: cell [t][p] holds how often class t
// was predicted as p.
type ConfusionMatrix [][]int

// NewConfusionMatrix tallies truth against predictions. Labels outside
// [0, nClasses) are ignored.
func NewConfusionMatrix(truth, pred []int, nClasses int) ConfusionMatrix {
	m := make(ConfusionMatrix, nClasses)
	for i := range m {
		m[i] = make([]int, nClasses)
	}
	for i := range truth {
		t, p := truth[i], pred[i]
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			continue
		}
		m[t][p]++
	}
	return m
}

// MacroF1 averages per-class F1 over every class that occurs in truth or
// predictions. A class with no true or predicted positives scores 0.
func MacroF1(truth, pred []int, nClasses int) float64 {
	m := NewConfusionMatrix(truth, pred, nClasses)
	var sum float64
	var present int
	for c := 0; c < nClasses; c++ {
		tp := m[c][c]
		var fp, fn int
		for o := 0; o < nClasses; o++ {
			if o == c {
				continue
			}
			fp += m[o][c]
			fn += m[c][o]
		}
		if tp+fp+fn == 0 {
			continue
		}
		present++
		sum += 2 * float64(tp) / float64(2*tp+fp+fn)
	}
	if present == 0 {
		return 0
	}
	return sum / float64(present)
}

// Accuracy is the share of exact matches.
func Accuracy(truth, pred []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	var hit int
	for i := range truth {
		if truth[i] == pred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(truth))
}
