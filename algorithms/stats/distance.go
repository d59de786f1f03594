package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DistanceFunction is a function type for computing distance between two vectors
type DistanceFunction func(a, b []float64) float64

// EuclideanDistanceFunc calculates Euclidean distance between two points
// of equal length
func EuclideanDistanceFunc(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// Neighbor is one reference point ranked by its distance to a query
type Neighbor struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

// RankNeighbors computes the distance from query to every point in data and
// returns them nearest-first. Equal distances keep their original order.
// A nil distFunc means Euclidean.
func RankNeighbors(query []float64, data [][]float64, distFunc DistanceFunction) []Neighbor {
	if distFunc == nil {
		distFunc = EuclideanDistanceFunc
	}

	neighbors := make([]Neighbor, len(data))
	for i, point := range data {
		neighbors[i] = Neighbor{
			Index:    i,
			Distance: distFunc(query, point),
		}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	return neighbors
}

// NearestNeighbors returns the k nearest points to query, nearest-first.
// k is clamped to [1, len(data)]; empty data yields nil.
func NearestNeighbors(query []float64, data [][]float64, k int, distFunc DistanceFunction) []Neighbor {
	if len(data) == 0 {
		return nil
	}
	k = max(1, min(k, len(data)))
	return RankNeighbors(query, data, distFunc)[:k]
}

// MeanDistance averages the distances of neighbors, or returns 0 if empty.
func MeanDistance(neighbors []Neighbor) float64 {
	if len(neighbors) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, n := range neighbors {
		sum += n.Distance
	}
	return sum / float64(len(neighbors))
}
