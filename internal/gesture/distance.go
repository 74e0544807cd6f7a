package gesture

import (
	"fmt"
	"math"

	"github.com/ayusman/handsoff/internal/embed"
)

// Metric selects the distance used to rank stored examples.
type Metric string

const (
	// MetricCosine ranks by 1 - cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricEuclidean ranks by straight-line distance.
	MetricEuclidean Metric = "euclidean"
)

// ParseMetric converts a name into a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricEuclidean:
		return Metric(s), nil
	case "":
		return MetricCosine, nil
	}
	return "", fmt.Errorf("unknown distance metric %q", s)
}

func (m Metric) distance(a, b embed.Embedding) float64 {
	if m == MetricEuclidean {
		return euclideanDistance(a, b)
	}
	return cosineDistance(a, b)
}

// euclideanDistance calculates the straight-line distance between two
// embeddings of equal length.
func euclideanDistance(a, b embed.Embedding) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// cosineDistance returns 1 - cos(a, b). A zero vector is treated as
// orthogonal to everything.
func cosineDistance(a, b embed.Embedding) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
