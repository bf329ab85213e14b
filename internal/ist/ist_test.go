package ist

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOverlapAndEnvelope(t *testing.T) {
	var tr Tree[string]
	tr.Insert(0, 0x90, "a")
	tr.Insert(0x100, 0x190, "b")
	tr.Insert(0x200, 0x290, "c")
	tr.Insert(0x300, 0x390, "d")

	got := tr.Overlap(0x150, 0x250)
	sort.Strings(got)
	want := []string{"b", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Overlap(0x150,0x250) = %v, want %v", got, want)
	}

	removed := tr.DeleteEnvelop(0, 0x400)
	sort.Strings(removed)
	wantAll := []string{"a", "b", "c", "d"}
	if diff := cmp.Diff(wantAll, removed); diff != "" {
		t.Fatalf("DeleteEnvelop(0,0x400) = %v, want %v", removed, wantAll)
	}
	if tr.Size() != 0 {
		t.Fatalf("tree not empty after DeleteEnvelop: size=%d", tr.Size())
	}
}

func TestAtIsOverlapWithPoint(t *testing.T) {
	var tr Tree[int]
	tr.Insert(10, 20, 1)
	tr.Insert(15, 25, 2)
	tr.Insert(30, 40, 3)

	got := tr.At(18)
	sort.Ints(got)
	if want := []int{1, 2}; cmp.Diff(want, got) != "" {
		t.Fatalf("At(18) = %v, want %v", got, want)
	}
	if got := tr.At(29); len(got) != 0 {
		t.Fatalf("At(29) = %v, want empty", got)
	}
}

func TestMultipleValuesSameKey(t *testing.T) {
	var tr Tree[int]
	tr.Insert(5, 10, 1)
	tr.Insert(5, 10, 2)
	tr.Insert(5, 10, 3)
	if tr.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 (one key, three values)", tr.Size())
	}
	got := tr.At(7)
	sort.Ints(got)
	if want := []int{1, 2, 3}; cmp.Diff(want, got) != "" {
		t.Fatalf("At(7) = %v, want %v", got, want)
	}
}

func TestDeleteExactKey(t *testing.T) {
	var tr Tree[string]
	tr.Insert(0, 10, "a")
	tr.Insert(20, 30, "b")

	vs, ok := tr.Delete(0, 10)
	if !ok || cmp.Diff([]string{"a"}, vs) != "" {
		t.Fatalf("Delete(0,10) = %v,%v", vs, ok)
	}
	if _, ok := tr.Delete(0, 10); ok {
		t.Fatalf("Delete(0,10) again should report not found")
	}
	if got := tr.Overlap(0, 100); cmp.Diff([]string{"b"}, got) != "" {
		t.Fatalf("Overlap after delete = %v", got)
	}
}

func TestEntriesOrdering(t *testing.T) {
	var tr Tree[int]
	for _, lo := range []uint64{50, 10, 30, 20, 40} {
		tr.Insert(lo, lo+5, int(lo))
	}
	entries := tr.Entries()
	var los []uint64
	for _, e := range entries {
		los = append(los, e.Key.Lo)
	}
	want := []uint64{10, 20, 30, 40, 50}
	if diff := cmp.Diff(want, los); diff != "" {
		t.Fatalf("Entries() key order = %v, want %v", los, want)
	}
}

func TestDeleteValueLeavesSiblingsAtSameKey(t *testing.T) {
	var tr Tree[string]
	tr.Insert(1, 2, "x")
	tr.Insert(1, 2, "y")

	removed, ok := tr.DeleteValue(1, 2, func(v string) bool { return v == "x" })
	if !ok || removed != "x" {
		t.Fatalf("DeleteValue = %q,%v", removed, ok)
	}
	if got := tr.At(1); cmp.Diff([]string{"y"}, got) != "" {
		t.Fatalf("At(1) after DeleteValue = %v, want [y]", got)
	}

	removed, ok = tr.DeleteValue(1, 2, func(v string) bool { return v == "y" })
	if !ok || removed != "y" {
		t.Fatalf("DeleteValue second = %q,%v", removed, ok)
	}
	if tr.Size() != 0 {
		t.Fatalf("tree should be empty once both values removed, size=%d", tr.Size())
	}
}

func TestInsertRejectsEmptyInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Insert(5,1,...) should panic on lo>hi")
		}
	}()
	var tr Tree[int]
	tr.Insert(5, 1, 0)
}
