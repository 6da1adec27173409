package learn

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Isolation forest defaults.
const (
	DefaultTrees      = 100
	DefaultMaxSamples = 256
)

// Labels produced by IsolationForest.Predict.
const (
	Inlier  = 1
	Outlier = -1
)

// INode is one node of an isolation tree, stored flat. Leaves have Left < 0.
type INode struct {
	Feature int     `msgpack:"f"`
	Split   float64 `msgpack:"s"`
	Left    int     `msgpack:"l"`
	Right   int     `msgpack:"r"`
	Size    int     `msgpack:"n"`
}

// IsolationForest scores samples by how quickly random splits isolate them.
type IsolationForest struct {
	Trees         [][]INode `msgpack:"trees"`
	SampleSize    int       `msgpack:"sample_size"`
	Contamination float64   `msgpack:"contamination"`
	// Threshold is the training-score quantile above which a sample is an outlier.
	Threshold float64 `msgpack:"threshold"`
}

// FitIsolationForest grows DefaultTrees trees on subsamples of X and sets the
// outlier threshold so that roughly contamination of X is flagged.
func FitIsolationForest(X [][]float64, contamination float64, seed int64) (*IsolationForest, error) {
	if len(X) == 0 {
		return nil, ErrEmpty
	}
	rng := rand.New(rand.NewSource(seed))
	psi := min(DefaultMaxSamples, len(X))
	limit := int(math.Ceil(math.Log2(math.Max(float64(psi), 2))))
	f := &IsolationForest{SampleSize: psi, Contamination: contamination}
	for t := 0; t < DefaultTrees; t++ {
		idx := rng.Perm(len(X))[:psi]
		var nodes []INode
		grow(&nodes, X, idx, 0, limit, rng)
		f.Trees = append(f.Trees, nodes)
	}
	scores := make([]float64, len(X))
	for i, x := range X {
		scores[i] = f.Score(x)
	}
	sort.Float64s(scores)
	f.Threshold = stat.Quantile(1-contamination, stat.Empirical, scores, nil)
	return f, nil
}

func grow(nodes *[]INode, X [][]float64, idx []int, depth, limit int, rng *rand.Rand) int {
	at := len(*nodes)
	*nodes = append(*nodes, INode{Left: -1, Right: -1, Size: len(idx)})
	if depth >= limit || len(idx) <= 1 {
		return at
	}
	feat := rng.Intn(len(X[idx[0]]))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		lo = math.Min(lo, X[i][feat])
		hi = math.Max(hi, X[i][feat])
	}
	if !(hi > lo) {
		return at
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right []int
	for _, i := range idx {
		if X[i][feat] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := grow(nodes, X, left, depth+1, limit, rng)
	r := grow(nodes, X, right, depth+1, limit, rng)
	(*nodes)[at].Feature = feat
	(*nodes)[at].Split = split
	(*nodes)[at].Left = l
	(*nodes)[at].Right = r
	return at
}

// avgPath is the expected path length of an unsuccessful BST search over n items.
func avgPath(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}

func pathLength(nodes []INode, x []float64) float64 {
	var depth float64
	i := 0
	for nodes[i].Left >= 0 {
		n := nodes[i]
		if x[n.Feature] < n.Split {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
	return depth + avgPath(nodes[i].Size)
}

// Score is the anomaly score in (0, 1]; higher is more anomalous.
func (f *IsolationForest) Score(x []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += pathLength(t, x)
	}
	mean := sum / float64(len(f.Trees))
	c := avgPath(f.SampleSize)
	if c == 0 {
		return 1
	}
	return math.Pow(2, -mean/c)
}

// Predict returns Outlier when the score exceeds the threshold, else Inlier.
func (f *IsolationForest) Predict(x []float64) int {
	if f.Score(x) > f.Threshold {
		return Outlier
	}
	return Inlier
}
