package embedding

import "math"

// meanPool averages the token rows of hidden, shaped [len(mask)][dims],
// whose mask entry is set. The result is L2-normalized.
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	vec := make([]float32, dims)
	var n float32
	for pos, m := range mask {
		if m == 0 {
			continue
		}
		n++
		row := hidden[pos*dims : (pos+1)*dims]
		for i, v := range row {
			vec[i] += v
		}
	}
	if n > 0 {
		for i := range vec {
			vec[i] /= n
		}
	}
	normalizeL2(vec)
	return vec
}

func normalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}
