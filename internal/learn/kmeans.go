package learn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// K-means defaults.
const (
	DefaultRestarts = 10
	DefaultMaxIter  = 300
)

// KMeans is a fitted Lloyd clustering.
type KMeans struct {
	K         int         `msgpack:"k"`
	Centroids [][]float64 `msgpack:"centroids"`
	Inertia   float64     `msgpack:"inertia"`
}

// FitKMeans runs DefaultRestarts k-means++ seeded restarts and keeps the one
// with the lowest inertia.
func FitKMeans(X [][]float64, k int, seed int64) (*KMeans, error) {
	if len(X) == 0 {
		return nil, ErrEmpty
	}
	if k < 1 || k > len(X) {
		return nil, fmt.Errorf("kmeans: k=%d outside [1, %d]", k, len(X))
	}
	rng := rand.New(rand.NewSource(seed))
	var best *KMeans
	for r := 0; r < DefaultRestarts; r++ {
		m := lloyd(X, seedPlusPlus(X, k, rng))
		if best == nil || m.Inertia < best.Inertia {
			best = m
		}
	}
	return best, nil
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func seedPlusPlus(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	cents := [][]float64{append([]float64(nil), X[rng.Intn(len(X))]...)}
	d2 := make([]float64, len(X))
	for len(cents) < k {
		var total float64
		for i, x := range X {
			d2[i] = math.Inf(1)
			for _, c := range cents {
				d2[i] = math.Min(d2[i], sqDist(x, c))
			}
			total += d2[i]
		}
		pick := 0
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range d2 {
				target -= d
				if target <= 0 {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(len(X))
		}
		cents = append(cents, append([]float64(nil), X[pick]...))
	}
	return cents
}

func lloyd(X [][]float64, cents [][]float64) *KMeans {
	k, p := len(cents), len(X[0])
	m := &KMeans{K: k, Centroids: cents}
	labels := make([]int, len(X))
	for iter := 0; iter < DefaultMaxIter; iter++ {
		changed := iter == 0
		for i, x := range X {
			if c := m.Predict(x); c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, p)
		}
		for i, x := range X {
			floats.Add(sums[labels[i]], x)
			counts[labels[i]]++
		}
		for c := range sums {
			// an emptied cluster keeps its previous centroid
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), sums[c])
				m.Centroids[c] = sums[c]
			}
		}
		if !changed {
			break
		}
	}
	m.Inertia = 0
	for i, x := range X {
		m.Inertia += sqDist(x, m.Centroids[labels[i]])
	}
	return m
}

// Predict returns the index of the nearest centroid.
func (m *KMeans) Predict(x []float64) int {
	best, bestD := 0, math.Inf(1)
	for c, cen := range m.Centroids {
		if d := sqDist(x, cen); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

// Labels assigns every sample.
func (m *KMeans) Labels(X [][]float64) []int {
	out := make([]int, len(X))
	for i, x := range X {
		out[i] = m.Predict(x)
	}
	return out
}

// Silhouette is the mean silhouette coefficient. Samples alone in their
// cluster score 0; a single cluster scores -1.
func Silhouette(X [][]float64, labels []int) float64 {
	clusters := map[int][]int{}
	for i, l := range labels {
		clusters[l] = append(clusters[l], i)
	}
	if len(clusters) < 2 || len(X) == 0 {
		return -1
	}
	var total float64
	for i, x := range X {
		own := clusters[labels[i]]
		if len(own) == 1 {
			continue
		}
		var a float64
		for _, j := range own {
			if j != i {
				a += floats.Distance(x, X[j], 2)
			}
		}
		a /= float64(len(own) - 1)
		b := math.Inf(1)
		for l, members := range clusters {
			if l == labels[i] {
				continue
			}
			var d float64
			for _, j := range members {
				d += floats.Distance(x, X[j], 2)
			}
			b = math.Min(b, d/float64(len(members)))
		}
		if den := math.Max(a, b); den > 0 {
			total += (b - a) / den
		}
	}
	return total / float64(len(X))
}
