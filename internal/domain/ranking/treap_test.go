package ranking

import (
	"errors"
	"math/rand"
	"sort"
	"testing"
)

func TestTreap_BasicOperations(t *testing.T) {
	tr := New()

	if tr.Len() != 0 {
		t.Errorf("expected empty ranking, got %d", tr.Len())
	}

	if got := tr.Add(7, 1); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
	tr.Add(3, 2)
	tr.Add(7, 2)

	entries, err := tr.TopN(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != 7 || entries[0].Count != 3 || entries[0].Rank != 1 {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].ID != 3 || entries[1].Rank != 2 {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
}

func TestTreap_TieBreaking(t *testing.T) {
	tr := New()
	for _, id := range []int64{9, 2, 5} {
		tr.Add(id, 4)
	}

	ids := tr.IDs(0)
	want := []int64{2, 5, 9}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestTreap_Decrement(t *testing.T) {
	tr := New()
	tr.Add(1, 2)
	tr.Add(2, 1)

	if got := tr.Add(1, -2); got != 0 {
		t.Errorf("expected removal, got count %d", got)
	}
	if tr.Len() != 1 {
		t.Errorf("expected 1 ranked id, got %d", tr.Len())
	}
	if _, err := tr.Rank(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if tr.Count(1) != 0 {
		t.Errorf("expected zero count for removed id")
	}
	if got := tr.Add(2, 0); got != 1 {
		t.Errorf("zero delta changed count to %d", got)
	}
}

func TestTreap_EdgeCases(t *testing.T) {
	tr := New()

	if _, err := tr.TopN(0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if ids := tr.IDs(5); ids != nil {
		t.Errorf("expected nil ids, got %v", ids)
	}
	if got := tr.Add(4, -1); got != 0 || tr.Len() != 0 {
		t.Errorf("negative delta on absent id should be a no-op")
	}
}

func TestTreap_RankCorrectnessUnderStress(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := New()
	counts := make(map[int64]int64)

	for i := 0; i < 5000; i++ {
		id := int64(rng.Intn(300))
		delta := int64(rng.Intn(5)) - 1
		got := tr.Add(id, delta)
		next := counts[id] + delta
		if next <= 0 {
			delete(counts, id)
			next = 0
		} else {
			counts[id] = next
		}
		if got != next {
			t.Fatalf("step %d: expected count %d, got %d", i, next, got)
		}
	}

	type pair struct{ id, count int64 }
	var want []pair
	for id, c := range counts {
		want = append(want, pair{id, c})
	}
	sort.Slice(want, func(i, j int) bool {
		if want[i].count != want[j].count {
			return want[i].count > want[j].count
		}
		return want[i].id < want[j].id
	})

	entries, err := tr.TopN(len(want) + 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, p := range want {
		if entries[i].ID != p.id || entries[i].Count != p.count {
			t.Fatalf("position %d: expected %+v, got %+v", i, p, entries[i])
		}
		e, err := tr.Rank(p.id)
		if err != nil || e.Rank != i+1 {
			t.Fatalf("rank of %d: expected %d, got %d (%v)", p.id, i+1, e.Rank, err)
		}
	}
}

func BenchmarkTreap_AddAndTopN(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	tr := New()
	for i := 0; i < 100_000; i++ {
		tr.Add(int64(rng.Intn(50_000)), 1)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Add(int64(rng.Intn(50_000)), 1)
		_ = tr.IDs(10)
	}
}
