package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/okian/puntscope/internal/domain/selection"
)

// node is a treap node ordered by selection.Less with a hash-derived heap
// priority, so the tree shape is independent of insertion order.
type node struct {
	outcome selection.Outcome
	prio    uint64
	left    *node
	right   *node
	size    int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func priority(p selection.Pair) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(p.String()))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, o selection.Outcome) *node {
	if n == nil {
		return &node{outcome: o, prio: priority(o.Pair), size: 1}
	}
	if selection.Less(o, n.outcome) {
		n.left = insert(n.left, o)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, o)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, o selection.Outcome) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.outcome.Pair == o.Pair:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, o)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, o)
		}
	case selection.Less(o, n.outcome):
		n.left = deleteNode(n.left, o)
	default:
		n.right = deleteNode(n.right, o)
	}
	fix(n)
	return n
}

// collect appends up to limit outcomes in rank order.
func collect(n *node, limit int, out *[]selection.Outcome) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.outcome)
	}
	if len(*out) < limit {
		collect(n.right, limit, out)
	}
}

// rankOf counts the outcomes ordered before o, plus one.
func rankOf(n *node, o selection.Outcome) int {
	rank := 1
	for n != nil {
		switch {
		case n.outcome.Pair == o.Pair:
			return rank + nsize(n.left)
		case selection.Less(o, n.outcome):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// TreapStore is an in-memory Store. It is safe for concurrent use by the
// worker pool.
type TreapStore struct {
	mu         sync.RWMutex
	root       *node
	byPair     map[selection.Pair]selection.Outcome
	keepFailed bool
}

var _ Store = (*TreapStore)(nil)

// NewTreapStore creates an empty store.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byPair:     make(map[selection.Pair]selection.Outcome),
		keepFailed: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stores o, replacing any earlier outcome for the same pair.
func (s *TreapStore) Record(ctx context.Context, o selection.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !o.OK() && !s.keepFailed {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byPair[o.Pair]; ok {
		s.root = deleteNode(s.root, prev)
	}
	s.root = insert(s.root, o)
	s.byPair[o.Pair] = o
	return nil
}

// Best returns the top ranked successful outcome.
func (s *TreapStore) Best(_ context.Context) (selection.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.root
	if n == nil {
		return selection.Outcome{}, ErrEmpty
	}
	for n.left != nil {
		n = n.left
	}
	// Failures sort last, so a failed minimum means nothing succeeded.
	if !n.outcome.OK() {
		return selection.Outcome{}, ErrEmpty
	}
	return n.outcome, nil
}

// Rank returns the 1-based rank of a pair and its outcome.
func (s *TreapStore) Rank(_ context.Context, p selection.Pair) (int, selection.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.byPair[p]
	if !ok {
		return 0, selection.Outcome{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return rankOf(s.root, o), o, nil
}

// TopN returns up to n outcomes best first.
func (s *TreapStore) TopN(_ context.Context, n int) ([]selection.Outcome, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]selection.Outcome, 0, min(n, nsize(s.root)))
	collect(s.root, n, &out)
	return out, nil
}

// All returns every outcome best first.
func (s *TreapStore) All(_ context.Context) []selection.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]selection.Outcome, 0, nsize(s.root))
	collect(s.root, nsize(s.root), &out)
	return out
}

// Count returns the number of pairs tracked.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPair)
}
