package utils

import "math"

// L2Distance returns the Euclidean distance between two vectors. Vectors of
// mismatched length are treated as maximally distant.
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine similarity of two vectors, 0 when either
// has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MMRSelect picks up to k candidate indexes using max-marginal-relevance:
// each step takes the candidate maximizing
//
//	lambda*sim(query, cand) - (1-lambda)*max(sim(cand, selected))
//
// balancing relevance against redundancy among the already-selected set.
func MMRSelect(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	selected := make([]int, 0, k)
	remaining := make(map[int]bool, len(candidates))
	for i := range candidates {
		remaining[i] = true
	}

	querySim := make([]float64, len(candidates))
	for i, c := range candidates {
		querySim[i] = CosineSimilarity(query, c)
	}

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range remaining {
			redundancy := 0.0
			for _, s := range selected {
				if sim := CosineSimilarity(candidates[i], candidates[s]); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*querySim[i] - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best < 0 {
			break
		}
		selected = append(selected, best)
		delete(remaining, best)
	}
	return selected
}
