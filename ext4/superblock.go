package ext4

import (
	"github.com/google/uuid"

	"github.com/nikifkon/ext4-tools/ext4/crc"
)

const superblockSize = 1024
const superblockOffset = 0x400

const (
	sbOffBlocksCountLo   = 0x04
	sbOffFirstDataBlock  = 0x14
	sbOffLogBlockSize    = 0x18
	sbOffBlocksPerGroup  = 0x20
	sbOffInodesPerGroup  = 0x28
	sbOffMagic           = 0x38
	sbOffInodeSize       = 0x58
	sbOffFeatureIncompat = 0x60
	sbOffUUID            = 0x68
	sbOffDescSize        = 0xFE
	sbOffBlocksCountHi   = 0x150
	sbOffChecksum        = 0x3FC
)

const sbMagic = 0xEF53

// Incompat feature bits this package understands or requires.
const (
	FeatureIncompatExtents = 0x0040
	FeatureIncompatFiletype = 0x0002
	FeatureIncompat64Bit    = 0x0080
	FeatureIncompatUninitBG = 0x2000
)

// Superblock is the filesystem-wide metadata record parsed from offset
// 0x400 of the image. Only the fields the rest of this package consumes are
// exposed; everything else lives untouched in the underlying record's raw
// bytes, so repacking never loses information the image originally carried.
type Superblock struct {
	rec record

	BlocksCount     uint64
	FirstDataBlock  uint32
	LogBlockSize    uint32
	BlocksPerGroup  uint32
	InodesPerGroup  uint32
	InodeSize       uint16
	FeatureIncompat uint32
	UUID            uuid.UUID
	DescSize        uint16
	Checksum        uint32
}

// BlockSize returns the filesystem block size in bytes.
func (sb *Superblock) BlockSize() uint64 {
	return 1024 << sb.LogBlockSize
}

// GroupCount returns the number of block groups the image is divided into.
func (sb *Superblock) GroupCount() uint64 {
	return (sb.BlocksCount + uint64(sb.BlocksPerGroup) - 1) / uint64(sb.BlocksPerGroup)
}

// HasIncompat reports whether every bit in mask is set in feature_incompat.
func (sb *Superblock) HasIncompat(mask uint32) bool {
	return sb.FeatureIncompat&mask == mask
}

// superblockFromBytes parses a 1024-byte superblock record.
func superblockFromBytes(b []byte) (*Superblock, error) {
	rec, err := newRecord(b, superblockSize, "superblock")
	if err != nil {
		return nil, err
	}
	if magic := rec.uint16(sbOffMagic); magic != sbMagic {
		return nil, &OpenError{Reason: "bad superblock magic"}
	}
	descSize := rec.uint16(sbOffDescSize)
	if descSize == 0 {
		descSize = 32
	}
	sb := &Superblock{
		rec:             rec,
		BlocksCount:     mergeHiLo(rec.uint32(sbOffBlocksCountHi), rec.uint32(sbOffBlocksCountLo)),
		FirstDataBlock:  rec.uint32(sbOffFirstDataBlock),
		LogBlockSize:    rec.uint32(sbOffLogBlockSize),
		BlocksPerGroup:  rec.uint32(sbOffBlocksPerGroup),
		InodesPerGroup:  rec.uint32(sbOffInodesPerGroup),
		InodeSize:       rec.uint16(sbOffInodeSize),
		FeatureIncompat: rec.uint32(sbOffFeatureIncompat),
		DescSize:        descSize,
		Checksum:        rec.uint32(sbOffChecksum),
	}
	copy(sb.UUID[:], rec.bytesAt(sbOffUUID, 16))
	return sb, nil
}

// toBytes repacks the superblock, reflecting any field mutations made since
// parsing while leaving every byte this type doesn't model untouched.
func (sb *Superblock) toBytes() []byte {
	r := sb.rec
	hi := uint32(sb.BlocksCount >> 32)
	lo := uint32(sb.BlocksCount)
	r.putUint32(sbOffBlocksCountLo, lo)
	r.putUint32(sbOffBlocksCountHi, hi)
	r.putUint32(sbOffFirstDataBlock, sb.FirstDataBlock)
	r.putUint32(sbOffLogBlockSize, sb.LogBlockSize)
	r.putUint32(sbOffBlocksPerGroup, sb.BlocksPerGroup)
	r.putUint32(sbOffInodesPerGroup, sb.InodesPerGroup)
	r.putUint16(sbOffInodeSize, sb.InodeSize)
	r.putUint32(sbOffFeatureIncompat, sb.FeatureIncompat)
	r.putBytes(sbOffUUID, sb.UUID[:])
	r.putUint16(sbOffDescSize, sb.DescSize)
	r.putUint32(sbOffChecksum, sb.Checksum)
	return r.bytes()
}

// verifyChecksum implements fsck Pass 0's superblock self-check: the CRC32C
// of the whole 1024-byte structure, checksum field included, must equal the
// CRC32 self-check constant 0xFFFFFFFF.
func (sb *Superblock) verifyChecksum() bool {
	return crc.Checksum32c(sb.toBytes()) == 0xFFFFFFFF
}

// RawBytes returns the superblock's current 1024-byte record, for debug
// hex-dumping.
func (sb *Superblock) RawBytes() []byte {
	return sb.toBytes()
}
