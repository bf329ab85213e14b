package rio

import (
	"reflect"
	"sort"
	"testing"
)

func TestMapUnmapLeavesTwoFragments(t *testing.T) {
	var r Registry
	if err := r.Map(0, 0x1000, 0x300); err != nil {
		t.Fatal(err)
	}
	if err := r.Unmap(0x1100, 0x100); err != nil {
		t.Fatal(err)
	}
	if !r.IsVir(0x1000, 0x100) {
		t.Fatal("expected [0x1000,0x1100) still mapped")
	}
	if !r.IsVir(0x1200, 0x100) {
		t.Fatal("expected [0x1200,0x1300) still mapped")
	}
	if r.IsVir(0x1100, 0x100) {
		t.Fatal("expected [0x1100,0x1200) unmapped")
	}
	if _, ok := r.SplitVaddrRange(0x1100, 0x100); ok {
		t.Fatal("SplitVaddrRange over the unmapped hole should fail")
	}
}

func TestMapOverlapRejected(t *testing.T) {
	var r Registry
	if err := r.Map(0, 0x1000, 0x100); err != nil {
		t.Fatal(err)
	}
	if err := r.Map(0x200, 0x1050, 0x100); err == nil {
		t.Fatal("expected AddressesOverlapError")
	}
}

func TestRevQueryOrdersAliases(t *testing.T) {
	var r Registry
	vaddrs := []uint64{0x9000, 0x8000, 0x7000, 0x6000, 0x5000, 0x4000}
	for _, v := range vaddrs {
		if err := r.Map(0x100, v, 0x10); err != nil {
			t.Fatal(err)
		}
	}
	got := r.RevQuery(0x100)
	want := append([]uint64(nil), vaddrs...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RevQuery = %v want %v", got, want)
	}
}

func TestUnmapDoesNotDisturbAliases(t *testing.T) {
	var r Registry
	if err := r.Map(0x100, 0x1000, 0x10); err != nil {
		t.Fatal(err)
	}
	if err := r.Map(0x100, 0x2000, 0x10); err != nil {
		t.Fatal(err)
	}
	if err := r.Unmap(0x1000, 0x10); err != nil {
		t.Fatal(err)
	}
	if r.IsVir(0x1000, 0x10) {
		t.Fatal("first alias should be gone")
	}
	if !r.IsVir(0x2000, 0x10) {
		t.Fatal("second alias should be untouched")
	}
	if got := r.RevQuery(0x105); len(got) != 1 || got[0] != 0x2005 {
		t.Fatalf("RevQuery(0x105) = %v, want [0x2005]", got)
	}
}

func TestVirToPhy(t *testing.T) {
	var r Registry
	if err := r.Map(0x500, 0x1000, 0x100); err != nil {
		t.Fatal(err)
	}
	got, ok := r.VirToPhy(0x1010)
	if !ok || got != 0x510 {
		t.Fatalf("VirToPhy(0x1010) = %d,%v want 0x510,true", got, ok)
	}
	if _, ok := r.VirToPhy(0x2000); ok {
		t.Fatal("VirToPhy of unmapped address should fail")
	}
}

func TestSplitVaddrSparseRangeSkipsGaps(t *testing.T) {
	var r Registry
	if err := r.Map(0, 0x1000, 0x100); err != nil {
		t.Fatal(err)
	}
	if err := r.Map(0x200, 0x1200, 0x100); err != nil {
		t.Fatal(err)
	}
	frags := r.SplitVaddrSparseRange(0x1000, 0x300)
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d: %+v", len(frags), frags)
	}
}

func TestZeroSizeMapRejected(t *testing.T) {
	var r Registry
	if err := r.Map(0, 0x1000, 0); err == nil {
		t.Fatal("zero-size map should be rejected")
	}
}
