package dsp

import "sort"

// PeakOptions constrains peak picking. MinHeight drops peaks below an
// absolute amplitude; MinDistance enforces a minimum spacing in
// samples, keeping the tallest peak of any cluster.
type PeakOptions struct {
	MinHeight   float64
	MinDistance int
}

// FindPeaks returns the indices of local maxima of x, in ascending
// order, after applying the height and distance constraints. A
// plateau counts as a single peak at its midpoint.
func FindPeaks(x []float64, opt PeakOptions) []int {
	n := len(x)
	if n < 3 {
		return nil
	}

	var candidates []int
	i := 1
	for i < n-1 {
		if x[i-1] < x[i] {
			// scan past a possible plateau
			j := i
			for j < n-1 && x[j+1] == x[i] {
				j++
			}
			if j < n-1 && x[j+1] < x[i] {
				candidates = append(candidates, (i+j)/2)
			}
			i = j + 1
			continue
		}
		i++
	}

	if opt.MinHeight > 0 {
		kept := candidates[:0]
		for _, p := range candidates {
			if x[p] >= opt.MinHeight {
				kept = append(kept, p)
			}
		}
		candidates = kept
	}

	if opt.MinDistance > 1 && len(candidates) > 1 {
		candidates = pruneByDistance(x, candidates, opt.MinDistance)
	}

	return candidates
}

// pruneByDistance removes peaks closer than minDist to a taller peak,
// visiting peaks from tallest to shortest so the dominant peak of
// each cluster survives.
func pruneByDistance(x []float64, peaks []int, minDist int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] > x[peaks[order[b]]]
	})

	removed := make([]bool, len(peaks))
	for _, idx := range order {
		if removed[idx] {
			continue
		}
		for j := idx - 1; j >= 0 && peaks[idx]-peaks[j] < minDist; j-- {
			removed[j] = true
		}
		for j := idx + 1; j < len(peaks) && peaks[j]-peaks[idx] < minDist; j++ {
			removed[j] = true
		}
	}

	kept := peaks[:0]
	for i, p := range peaks {
		if !removed[i] {
			kept = append(kept, p)
		}
	}
	return kept
}
