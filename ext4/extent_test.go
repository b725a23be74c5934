package ext4

import "testing"

// stubBlockReader serves fixed block contents keyed by block number, for
// exercising walkExtentTree without a real backing image.
type stubBlockReader struct {
	blocks map[uint64][]byte
}

func (s *stubBlockReader) readBlock(n uint64) ([]byte, error) {
	b, ok := s.blocks[n]
	if !ok {
		t := &InvalidInodeError{Reason: "no such test block"}
		return nil, t
	}
	return b, nil
}

func putUint16LEExt(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func putUint32LEExt(b []byte, off int, v uint32) {
	for i := 0; i < 4; i++ {
		b[off+i] = byte(v >> (8 * i))
	}
}

func encodeLeafEntry(logicalStart uint32, length uint16, physicalStart uint64) []byte {
	entry := make([]byte, extentEntrySize)
	putUint32LEExt(entry, eeOffBlock, logicalStart)
	putUint16LEExt(entry, eeOffLen, length)
	putUint16LEExt(entry, eeOffStartHi, uint16(physicalStart>>32))
	putUint32LEExt(entry, eeOffStartLo, uint32(physicalStart))
	return entry
}

func encodeIndexEntry(logicalStart uint32, childBlock uint64) []byte {
	entry := make([]byte, extentEntrySize)
	putUint32LEExt(entry, eeOffBlock, logicalStart)
	putUint32LEExt(entry, eiOffLeafLo, uint32(childBlock))
	putUint16LEExt(entry, eiOffLeafHi, uint16(childBlock>>32))
	return entry
}

func encodeHeader(entries int, depth uint16) []byte {
	h := make([]byte, extentHeaderSize)
	putUint16LEExt(h, ehOffMagic, extentMagic)
	putUint16LEExt(h, ehOffEntries, uint16(entries))
	putUint16LEExt(h, ehOffDepth, depth)
	return h
}

func TestWalkExtentTreeLeafOnly(t *testing.T) {
	node := append(encodeHeader(2, 0), encodeLeafEntry(0, 10, 1000)...)
	node = append(node, encodeLeafEntry(10, 5, 2000)...)

	got, err := walkExtentTree(node, &stubBlockReader{})
	if err != nil {
		t.Fatalf("walkExtentTree: %v", err)
	}
	want := []Extent{
		{LogicalStart: 0, PhysicalStart: 1000, Length: 10},
		{LogicalStart: 10, PhysicalStart: 2000, Length: 5},
	}
	if len(got) != len(want) {
		t.Fatalf("walkExtentTree() returned %d extents, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("extent %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWalkExtentTreeUninitializedExtent(t *testing.T) {
	node := append(encodeHeader(1, 0), encodeLeafEntry(0, extentUninitLenThreshold+5, 42)...)

	got, err := walkExtentTree(node, &stubBlockReader{})
	if err != nil {
		t.Fatalf("walkExtentTree: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if !got[0].Uninit || got[0].Length != 5 {
		t.Errorf("got[0] = %+v, want Uninit=true Length=5", got[0])
	}
}

func TestWalkExtentTreeMultiLevel(t *testing.T) {
	leaf := append(encodeHeader(1, 0), encodeLeafEntry(0, 3, 500)...)
	root := append(encodeHeader(1, 1), encodeIndexEntry(0, 99)...)

	br := &stubBlockReader{blocks: map[uint64][]byte{99: leaf}}
	got, err := walkExtentTree(root, br)
	if err != nil {
		t.Fatalf("walkExtentTree: %v", err)
	}
	if len(got) != 1 || got[0].PhysicalStart != 500 {
		t.Errorf("got = %+v, want one extent at physical 500", got)
	}
}

func TestWalkExtentTreeWrongMagicYieldsNil(t *testing.T) {
	node := make([]byte, extentHeaderSize)
	got, err := walkExtentTree(node, &stubBlockReader{})
	if err != nil {
		t.Fatalf("walkExtentTree: %v", err)
	}
	if got != nil {
		t.Errorf("walkExtentTree() = %v, want nil for an unrecognized header", got)
	}
}
