package ext4

import "github.com/nikifkon/ext4-tools/ext4/crc"

const (
	groupDescriptorSize32 = 32
	groupDescriptorSize64 = 64
)

const (
	gdOffBlockBitmapLo     = 0x00
	gdOffInodeBitmapLo     = 0x04
	gdOffInodeTableLo      = 0x08
	gdOffFlags             = 0x12
	gdOffBlockBitmapCsumLo = 0x18
	gdOffInodeBitmapCsumLo = 0x1A
	gdOffChecksum          = 0x1E
	gdOffBlockBitmapHi     = 0x20
	gdOffInodeBitmapHi     = 0x24
	gdOffInodeTableHi      = 0x28
	gdOffBlockBitmapCsumHi = 0x38
	gdOffInodeBitmapCsumHi = 0x3A
)

// Group-descriptor flag bits, per spec: bit 0x2 marks the block bitmap
// uninitialized; any bit within mask 0xF1 marks the inode bitmap or inode
// table uninitialized.
const (
	gdFlagBlockBitmapUninit = 0x2
	gdFlagInodeUninitMask   = 0xF1
)

// GroupDescriptor describes one block group's bitmap and inode-table
// locations, flags and checksums.
type GroupDescriptor struct {
	rec record

	Number uint32

	BlockBitmap     uint64
	InodeBitmap     uint64
	InodeTable      uint64
	Flags           uint16
	BlockBitmapCsum uint32
	InodeBitmapCsum uint32
	Checksum        uint16
}

// BlockBitmapUninit reports whether the group's block bitmap is marked
// uninitialized.
func (gd *GroupDescriptor) BlockBitmapUninit() bool {
	return gd.Flags&gdFlagBlockBitmapUninit != 0
}

// InodeUninit reports whether the group's inode bitmap or inode table is
// marked uninitialized.
func (gd *GroupDescriptor) InodeUninit() bool {
	return gd.Flags&gdFlagInodeUninitMask != 0
}

func groupDescriptorFromBytes(b []byte, descSize uint16, number uint32) (*GroupDescriptor, error) {
	rec, err := newRecord(b, int(descSize), "group descriptor")
	if err != nil {
		return nil, err
	}
	gd := &GroupDescriptor{
		rec:             rec,
		Number:          number,
		BlockBitmap:     uint64(rec.uint32(gdOffBlockBitmapLo)),
		InodeBitmap:     uint64(rec.uint32(gdOffInodeBitmapLo)),
		InodeTable:      uint64(rec.uint32(gdOffInodeTableLo)),
		Flags:           rec.uint16(gdOffFlags),
		BlockBitmapCsum: uint32(rec.uint16(gdOffBlockBitmapCsumLo)),
		InodeBitmapCsum: uint32(rec.uint16(gdOffInodeBitmapCsumLo)),
		Checksum:        rec.uint16(gdOffChecksum),
	}
	if descSize >= groupDescriptorSize64 {
		gd.BlockBitmap = mergeHiLo(rec.uint32(gdOffBlockBitmapHi), uint32(gd.BlockBitmap))
		gd.InodeBitmap = mergeHiLo(rec.uint32(gdOffInodeBitmapHi), uint32(gd.InodeBitmap))
		gd.InodeTable = mergeHiLo(rec.uint32(gdOffInodeTableHi), uint32(gd.InodeTable))
		gd.BlockBitmapCsum |= uint32(rec.uint16(gdOffBlockBitmapCsumHi)) << 16
		gd.InodeBitmapCsum |= uint32(rec.uint16(gdOffInodeBitmapCsumHi)) << 16
	}
	return gd, nil
}

func (gd *GroupDescriptor) toBytes() []byte {
	r := gd.rec
	r.putUint32(gdOffBlockBitmapLo, uint32(gd.BlockBitmap))
	r.putUint32(gdOffInodeBitmapLo, uint32(gd.InodeBitmap))
	r.putUint32(gdOffInodeTableLo, uint32(gd.InodeTable))
	r.putUint16(gdOffFlags, gd.Flags)
	r.putUint16(gdOffBlockBitmapCsumLo, uint16(gd.BlockBitmapCsum))
	r.putUint16(gdOffInodeBitmapCsumLo, uint16(gd.InodeBitmapCsum))
	r.putUint16(gdOffChecksum, gd.Checksum)
	if len(r.raw) >= groupDescriptorSize64 {
		r.putUint32(gdOffBlockBitmapHi, uint32(gd.BlockBitmap>>32))
		r.putUint32(gdOffInodeBitmapHi, uint32(gd.InodeBitmap>>32))
		r.putUint32(gdOffInodeTableHi, uint32(gd.InodeTable>>32))
		r.putUint16(gdOffBlockBitmapCsumHi, uint16(gd.BlockBitmapCsum>>16))
		r.putUint16(gdOffInodeBitmapCsumHi, uint16(gd.InodeBitmapCsum>>16))
	}
	return r.bytes()
}

// verifyChecksum implements fsck Pass 0's per-group descriptor check: the
// expected 16-bit checksum is the low 16 bits of the complemented CRC32C of
// uuid || group_number || descriptor_bytes_with_checksum_zeroed.
func (gd *GroupDescriptor) verifyChecksum(u []byte) (expected uint16, ok bool) {
	numberBytes := []byte{
		byte(gd.Number), byte(gd.Number >> 8), byte(gd.Number >> 16), byte(gd.Number >> 24),
	}
	body := gd.toBytes()
	body[gdOffChecksum], body[gdOffChecksum+1] = 0, 0
	input := make([]byte, 0, len(u)+len(numberBytes)+len(body))
	input = append(input, u...)
	input = append(input, numberBytes...)
	input = append(input, body...)
	expected = uint16(crc.Complement32c(input) & 0xFFFF)
	return expected, expected == gd.Checksum
}
