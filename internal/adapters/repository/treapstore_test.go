package repository

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okian/puntscope/internal/domain/selection"
	"github.com/okian/puntscope/internal/domain/vmf"
)

func outcome(k int, regime vmf.Regime, bic float64) selection.Outcome {
	p := selection.Pair{K: k, Regime: regime}
	params := vmf.ParamCount(k, regime)
	return selection.Succeeded(p, &vmf.Model{K: k, Regime: regime, BIC: bic, Params: params}, time.Millisecond)
}

func failed(k int, regime vmf.Regime) selection.Outcome {
	return selection.Failed(selection.Pair{K: k, Regime: regime}, errors.New("collapsed"), time.Millisecond)
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}
	if _, err := store.Best(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}

	if err := store.Record(ctx, outcome(2, vmf.Shared, 100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	rank, got, err := store.Rank(ctx, selection.Pair{K: 2, Regime: vmf.Shared})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rank != 1 || got.BIC != 100 {
		t.Errorf("expected rank 1 with BIC 100, got %d / %v", rank, got.BIC)
	}

	best, err := store.Best(ctx)
	if err != nil || best.K != 2 {
		t.Errorf("expected k=2 best, got %v (%v)", best.Pair, err)
	}
}

func TestTreapStore_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	_ = store.Record(ctx, outcome(1, vmf.Shared, 300))
	_ = store.Record(ctx, outcome(2, vmf.Shared, 120))
	_ = store.Record(ctx, outcome(2, vmf.Independent, 125))
	_ = store.Record(ctx, outcome(3, vmf.Shared, 130))
	_ = store.Record(ctx, failed(4, vmf.Independent))

	all := store.All(ctx)
	want := []selection.Pair{
		{K: 2, Regime: vmf.Shared},
		{K: 2, Regime: vmf.Independent},
		{K: 3, Regime: vmf.Shared},
		{K: 1, Regime: vmf.Shared},
		{K: 4, Regime: vmf.Independent},
	}
	if len(all) != len(want) {
		t.Fatalf("expected %d outcomes, got %d", len(want), len(all))
	}
	for i, p := range want {
		if all[i].Pair != p {
			t.Errorf("position %d: expected %v, got %v", i, p, all[i].Pair)
		}
		rank, _, err := store.Rank(ctx, p)
		if err != nil || rank != i+1 {
			t.Errorf("rank of %v: expected %d, got %d (%v)", p, i+1, rank, err)
		}
	}

	top, err := store.TopN(ctx, 2)
	if err != nil || len(top) != 2 || top[0].K != 2 || top[1].Regime != vmf.Independent {
		t.Errorf("unexpected top 2: %v (%v)", top, err)
	}
}

func TestTreapStore_TieBreaking(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	// Equal BIC: fewer params first (k=2 shared has 4, k=2 independent 5).
	_ = store.Record(ctx, outcome(2, vmf.Independent, 50))
	_ = store.Record(ctx, outcome(2, vmf.Shared, 50))

	best, err := store.Best(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.Regime != vmf.Shared {
		t.Errorf("expected shared to win the tie, got %v", best.Pair)
	}
}

func TestTreapStore_Replace(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	_ = store.Record(ctx, outcome(1, vmf.Shared, 10))
	_ = store.Record(ctx, outcome(2, vmf.Shared, 20))
	_ = store.Record(ctx, outcome(1, vmf.Shared, 30))

	if count := store.Count(ctx); count != 2 {
		t.Errorf("expected count 2 after replace, got %d", count)
	}
	best, _ := store.Best(ctx)
	if best.K != 2 {
		t.Errorf("expected k=2 best after replace, got %v", best.Pair)
	}
	if got := len(store.All(ctx)); got != 2 {
		t.Errorf("expected 2 nodes, got %d", got)
	}
}

func TestTreapStore_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("only failures", func(t *testing.T) {
		store := NewTreapStore()
		_ = store.Record(ctx, failed(1, vmf.Shared))
		if _, err := store.Best(ctx); !errors.Is(err, ErrEmpty) {
			t.Errorf("expected ErrEmpty, got %v", err)
		}
		if store.Count(ctx) != 1 {
			t.Error("failed outcome should be kept by default")
		}
	})

	t.Run("drop failures", func(t *testing.T) {
		store := NewTreapStore(WithKeepFailed(false))
		_ = store.Record(ctx, failed(1, vmf.Shared))
		if store.Count(ctx) != 0 {
			t.Error("failed outcome should be dropped")
		}
	})
}

func TestTreapStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, _, err := store.Rank(ctx, selection.Pair{K: 9, Regime: vmf.Shared}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.Record(cancelled, outcome(1, vmf.Shared, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTreapStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	grid := selection.Grid(1, 10)

	rng := rand.New(rand.NewSource(7))
	bics := make([]float64, len(grid))
	for i := range bics {
		bics[i] = rng.Float64() * 1000
	}

	var wg sync.WaitGroup
	for i, p := range grid {
		wg.Add(1)
		go func(i int, p selection.Pair) {
			defer wg.Done()
			_ = store.Record(ctx, outcome(p.K, p.Regime, bics[i]))
		}(i, p)
	}
	wg.Wait()

	all := store.All(ctx)
	if len(all) != len(grid) {
		t.Fatalf("expected %d outcomes, got %d", len(grid), len(all))
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return selection.Less(all[i], all[j]) }) {
		t.Error("outcomes are not in rank order")
	}

	expected := make([]selection.Outcome, 0, len(grid))
	for i, p := range grid {
		expected = append(expected, outcome(p.K, p.Regime, bics[i]))
	}
	want, _ := selection.Select(expected)
	best, _ := store.Best(ctx)
	if best.Pair != want.Pair {
		t.Errorf("store best %v differs from Select %v", best.Pair, want.Pair)
	}
}
