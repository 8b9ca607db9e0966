// Package partition splits sized items into contiguous groups of roughly equal
// total volume. It plans both map task input assignment and reduce task key
// assignment.
package partition

import "math"

// NumBlocks returns how many groups Blocks produces for the given input:
// max(ceil(total/sizePerBlock), minParallel), clamped to [1, numItems].
// A non-positive sizePerBlock disables the volume constraint.
func NumBlocks(sizes []int64, sizePerBlock int64, minParallel int) int {
	if len(sizes) == 0 {
		return 0
	}

	var total int64
	for _, size := range sizes {
		total += size
	}

	n := 0
	if sizePerBlock > 0 {
		n = int(math.Ceil(float64(total) / float64(sizePerBlock)))
	}
	n = max(n, minParallel, 1)
	return min(n, len(sizes))
}

// Blocks partitions the indices of sizes into ordered, contiguous, non-empty
// groups. Group boundaries are placed where the cumulative size curve comes
// closest to evenly spaced fractions of the total. The result depends only on
// the input, so reruns plan identical tasks.
func Blocks(sizes []int64, sizePerBlock int64, minParallel int) [][]int {
	n := NumBlocks(sizes, sizePerBlock, minParallel)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return [][]int{indices(0, len(sizes))}
	}

	cumulative := make([]int64, len(sizes)+1)
	for i, size := range sizes {
		cumulative[i+1] = cumulative[i] + size
	}
	total := float64(cumulative[len(sizes)])

	blocks := make([][]int, 0, n)
	start := 0
	for j := 1; j < n; j++ {
		target := total * float64(j) / float64(n)

		// Leave at least one item for each remaining block.
		lo, hi := start+1, len(sizes)-(n-j)
		end := lo
		best := math.Abs(float64(cumulative[lo]) - target)
		for e := lo + 1; e <= hi; e++ {
			dist := math.Abs(float64(cumulative[e]) - target)
			if dist < best {
				end, best = e, dist
			}
			if float64(cumulative[e]) > target {
				break
			}
		}

		blocks = append(blocks, indices(start, end))
		start = end
	}
	blocks = append(blocks, indices(start, len(sizes)))

	return blocks
}

func indices(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
