package ext4

import "testing"

func buildGroupDescriptor(t *testing.T, number uint32, uuid []byte) *GroupDescriptor {
	t.Helper()
	raw := make([]byte, groupDescriptorSize64)
	gd, err := groupDescriptorFromBytes(raw, groupDescriptorSize64, number)
	if err != nil {
		t.Fatalf("groupDescriptorFromBytes: %v", err)
	}
	gd.BlockBitmap = 10
	gd.InodeBitmap = 11
	gd.InodeTable = 12
	gd.Flags = 0

	// fold the descriptor back into raw bytes so verifyChecksum has a
	// consistent image to hash, then compute and install the real checksum.
	gd.rec.putUint32(gdOffBlockBitmapLo, uint32(gd.BlockBitmap))
	gd.rec.putUint32(gdOffInodeBitmapLo, uint32(gd.InodeBitmap))
	gd.rec.putUint32(gdOffInodeTableLo, uint32(gd.InodeTable))

	expected, _ := gd.verifyChecksum(uuid)
	gd.Checksum = expected
	gd.rec.putUint16(gdOffChecksum, expected)
	return gd
}

func TestGroupDescriptorChecksumRoundTrip(t *testing.T) {
	uuid := make([]byte, 16)
	for i := range uuid {
		uuid[i] = byte(i)
	}
	gd := buildGroupDescriptor(t, 3, uuid)

	expected, ok := gd.verifyChecksum(uuid)
	if !ok {
		t.Fatalf("verifyChecksum() ok=false, expected=%#x actual=%#x", expected, gd.Checksum)
	}
}

func TestGroupDescriptorChecksumDetectsCorruption(t *testing.T) {
	uuid := make([]byte, 16)
	gd := buildGroupDescriptor(t, 0, uuid)

	gd.Flags = 0xFFFF // corrupt a named field without recomputing the checksum

	if _, ok := gd.verifyChecksum(uuid); ok {
		t.Error("verifyChecksum() should fail after a field changes without a checksum update")
	}
}

func TestGroupDescriptorUninitFlags(t *testing.T) {
	gd := &GroupDescriptor{Flags: gdFlagBlockBitmapUninit}
	if !gd.BlockBitmapUninit() {
		t.Error("BlockBitmapUninit() should be true")
	}
	if gd.InodeUninit() {
		t.Error("InodeUninit() should be false for a block-bitmap-only flag")
	}

	gd2 := &GroupDescriptor{Flags: 0x10}
	if !gd2.InodeUninit() {
		t.Error("InodeUninit() should be true within the 0xF1 mask")
	}
}

func TestGroupDescriptor32BitHasNoHiFields(t *testing.T) {
	raw := make([]byte, groupDescriptorSize32)
	gd, err := groupDescriptorFromBytes(raw, groupDescriptorSize32, 0)
	if err != nil {
		t.Fatalf("groupDescriptorFromBytes: %v", err)
	}
	gd.BlockBitmap = 0xFFFFFFFF // must fit entirely in the lo field
	out := gd.toBytes()
	if len(out) != groupDescriptorSize32 {
		t.Fatalf("toBytes() len = %d, want %d", len(out), groupDescriptorSize32)
	}
}
