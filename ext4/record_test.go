package ext4

import (
	"bytes"
	"testing"

	"github.com/nikifkon/ext4-tools/util"
)

// TestRecordRoundTrip exercises §8 invariant 1: repack(parse(raw)) == raw
// when nothing named is mutated, including across reserved byte ranges
// this package never names.
func TestRecordRoundTrip(t *testing.T) {
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	rec, err := newRecord(raw, 64, "test")
	if err != nil {
		t.Fatalf("newRecord: %v", err)
	}
	out := rec.bytes()
	if !bytes.Equal(raw, out) {
		if _, diff := util.DumpByteSlicesWithDiffs(raw, out, 16, true, true, false); diff != "" {
			t.Errorf("round trip mismatch:\n%s", diff)
		} else {
			t.Error("round trip mismatch")
		}
	}
}

func TestRecordSizeMismatch(t *testing.T) {
	if _, err := newRecord(make([]byte, 10), 64, "test"); err == nil {
		t.Error("expected error for mismatched size")
	}
}

func TestRecordZeroed(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6}
	rec, _ := newRecord(raw, 6, "test")
	z := rec.zeroed([2]int{1, 3})
	if !bytes.Equal(z, []byte{1, 0, 0, 4, 5, 6}) {
		t.Errorf("zeroed() = %v", z)
	}
	// original bytes must be untouched
	if !bytes.Equal(rec.bytes(), raw) {
		t.Errorf("zeroed() mutated the record: %v", rec.bytes())
	}
}

func TestMergeHiLo(t *testing.T) {
	got := mergeHiLo(0x1, 0x2)
	want := uint64(0x100000002)
	if got != want {
		t.Errorf("mergeHiLo() = %#x, want %#x", got, want)
	}
}
