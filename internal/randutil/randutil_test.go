package randutil

import (
	"slices"
	"testing"
)

func TestNewIsDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}

	c := New(43)
	same := true
	a = New(42)
	for i := 0; i < 10; i++ {
		if a.Uint64() != c.Uint64() {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced the same stream")
	}
}

func TestSample(t *testing.T) {
	ids := []int{9, 3, 5, 7, 1, 2}

	tests := []struct {
		name string
		k    int
		want int
	}{
		{"zero", 0, 0},
		{"negative", -3, 0},
		{"some", 3, 3},
		{"all", 6, 6},
		{"more than available", 10, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sample(New(1), ids, tt.k)
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			if !slices.IsSorted(got) {
				t.Errorf("result not sorted: %v", got)
			}
			seen := map[int]bool{}
			for _, id := range got {
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				if !slices.Contains(ids, id) {
					t.Errorf("id %d not in input", id)
				}
			}
		})
	}

	// Input must not be reordered.
	if !slices.Equal(ids, []int{9, 3, 5, 7, 1, 2}) {
		t.Errorf("input mutated: %v", ids)
	}
}

func TestSampleReproducible(t *testing.T) {
	ids := make([]int, 100)
	for i := range ids {
		ids[i] = i
	}
	a := Sample(New(7), ids, 20)
	b := Sample(New(7), ids, 20)
	if !slices.Equal(a, b) {
		t.Errorf("same seed gave different samples: %v vs %v", a, b)
	}
}

func TestBernoulliBounds(t *testing.T) {
	r := New(3)
	for i := 0; i < 1000; i++ {
		if Bernoulli(r, 0) {
			t.Fatal("p=0 succeeded")
		}
		if !Bernoulli(r, 1) {
			t.Fatal("p=1 failed")
		}
		if Bernoulli(r, -0.5) {
			t.Fatal("negative p succeeded")
		}
	}
}

func TestRoundCount(t *testing.T) {
	tests := []struct {
		frac float64
		n    int
		want int
	}{
		{0.1, 100, 10},
		{0.5, 5, 3},
		{0.25, 10, 3},
		{0, 10, 0},
		{1, 10, 10},
		{1.5, 10, 10},
		{-1, 10, 0},
	}
	for _, tt := range tests {
		if got := RoundCount(tt.frac, tt.n); got != tt.want {
			t.Errorf("RoundCount(%v, %d) = %d, want %d", tt.frac, tt.n, got, tt.want)
		}
	}
}
