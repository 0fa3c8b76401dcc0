package store

import (
	"container/heap"
	"slices"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// SortShard orders one file's candidates by timestamp, then record order.
func SortShard(cands []domain.Candidate) {
	slices.SortStableFunc(cands, func(a, b domain.Candidate) int {
		switch {
		case a.Before(&b):
			return -1
		case b.Before(&a):
			return 1
		default:
			return 0
		}
	})
}

type cursor struct {
	shard []domain.Candidate
	pos   int
}

type mergeHeap []*cursor

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	return h[i].shard[h[i].pos].Before(&h[j].shard[h[j].pos])
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *mergeHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// Merge calls fn for the candidates of every sorted shard in global
// timestamp order, ties broken by shard index then record order. It stops
// at the first error fn returns.
func Merge(shards [][]domain.Candidate, fn func(*domain.Candidate) error) error {
	h := make(mergeHeap, 0, len(shards))
	for _, s := range shards {
		if len(s) > 0 {
			h = append(h, &cursor{shard: s})
		}
	}
	heap.Init(&h)

	for h.Len() > 0 {
		c := h[0]
		if err := fn(&c.shard[c.pos]); err != nil {
			return err
		}
		c.pos++
		if c.pos == len(c.shard) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return nil
}
