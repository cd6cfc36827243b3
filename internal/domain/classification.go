package domain

// ClassificationReport scores binary predictions against labels, class 1 being
// "target hit". Ratios with an empty denominator are reported as 0.
type ClassificationReport struct {
	Samples        int
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
	Accuracy       float64
	Precision      float64
	Recall         float64
	F1             float64
}

// Support returns the number of positive labels.
func (r ClassificationReport) Support() int {
	return r.TruePositives + r.FalseNegatives
}

// Classify compares probabilities against labels, predicting class 1 when the
// probability is >= cutoff.
func Classify(probabilities []float64, labels []int, cutoff float64) ClassificationReport {
	var r ClassificationReport
	n := min(len(probabilities), len(labels))
	for i := 0; i < n; i++ {
		predicted := probabilities[i] >= cutoff
		actual := labels[i] == 1
		switch {
		case predicted && actual:
			r.TruePositives++
		case predicted && !actual:
			r.FalsePositives++
		case !predicted && actual:
			r.FalseNegatives++
		default:
			r.TrueNegatives++
		}
	}
	r.Samples = n
	r.Accuracy = ratio(r.TruePositives+r.TrueNegatives, n)
	r.Precision = ratio(r.TruePositives, r.TruePositives+r.FalsePositives)
	r.Recall = ratio(r.TruePositives, r.TruePositives+r.FalseNegatives)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	return r
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
