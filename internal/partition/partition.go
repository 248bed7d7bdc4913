// Package partition splits pending products across capture workers.
package partition

import (
	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// WorkerCount derives the worker pool size from the machine's logical CPU
// count: floor(fraction * numCPU), never below one.
func WorkerCount(numCPU int, fraction float64) int {
	n := int(float64(numCPU) * fraction)
	if n < 1 {
		return 1
	}
	return n
}

// Annotate pairs each pending product with its index in the full collection,
// matching by identity key. The page server addresses records by that index.
func Annotate(all, pending []tag.Product) []tag.WorkItem {
	byKey := make(map[tag.Key]int, len(all))
	for i, p := range all {
		k := p.Key()
		if _, ok := byKey[k]; !ok {
			byKey[k] = i
		}
	}
	items := make([]tag.WorkItem, 0, len(pending))
	for _, p := range pending {
		i, ok := byKey[p.Key()]
		if !ok {
			continue
		}
		items = append(items, tag.WorkItem{Product: p, Index: i})
	}
	return items
}

// Split distributes items round-robin over n chunks, preserving relative
// order inside each chunk. Chunks may come back empty when n exceeds the
// item count.
func Split(items []tag.WorkItem, n int) [][]tag.WorkItem {
	if n < 1 {
		n = 1
	}
	chunks := make([][]tag.WorkItem, n)
	for i, item := range items {
		chunks[i%n] = append(chunks[i%n], item)
	}
	return chunks
}
