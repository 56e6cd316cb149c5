package rag

import (
	"math"
	"sort"
)

// CosineDistance returns 1 - cosine similarity of a and b. Zero vectors are
// treated as maximally distant. The caller guarantees equal lengths.
func CosineDistance(a, b []float32) float32 {
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
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

// nearest scores every candidate against query and returns the n closest,
// nearest first. Ties keep candidate order.
func nearest(query []float32, candidates []Record, n int) ([]Result, error) {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			return nil, ErrDimensionMismatch
		}
		rec := c
		rec.Vector = nil
		results = append(results, Result{Record: rec, Distance: CosineDistance(query, c.Vector)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if n >= 0 && n < len(results) {
		results = results[:n]
	}
	return results, nil
}

// page applies limit/offset to a slice of matches.
func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
