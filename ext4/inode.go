package ext4

import "github.com/nikifkon/ext4-tools/ext4/crc"

const (
	inodeBaseSize  = 128
	inodeExtraOff  = 0x80
	inodeExtraSize = 0x20
)

const (
	iOffMode        = 0x00
	iOffUID         = 0x02
	iOffSizeLo      = 0x04
	iOffAtime       = 0x08
	iOffCtime       = 0x0C
	iOffMtime       = 0x10
	iOffDtime       = 0x14
	iOffGID         = 0x18
	iOffLinksCount  = 0x1A
	iOffBlocksLo    = 0x1C
	iOffFlags       = 0x20
	iOffBlock       = 0x28
	iBlockLen       = 60
	iOffGeneration  = 0x64
	iOffChecksumLo  = 0x7C
	iOffChecksumHi  = 0x82 // from the inode start: extra area (0x80) + 0x02
	iOffExtraIsize  = 0x80
)

// FileType is the high-nibble-of-mode file type enum.
type FileType uint8

const (
	FileTypeFIFO    FileType = 1
	FileTypeChar    FileType = 2
	FileTypeDir     FileType = 4
	FileTypeBlock   FileType = 6
	FileTypeRegular FileType = 8
	FileTypeSymlink FileType = 10
	FileTypeSocket  FileType = 12
)

// DirEntryFileType maps a FileType to the 3-bit code dir_entry_2 records
// carry in their file_type byte.
func (ft FileType) DirEntryFileType() uint8 {
	switch ft {
	case FileTypeRegular:
		return 1
	case FileTypeDir:
		return 2
	case FileTypeChar:
		return 3
	case FileTypeBlock:
		return 4
	case FileTypeFIFO:
		return 5
	case FileTypeSocket:
		return 6
	case FileTypeSymlink:
		return 7
	default:
		return 0
	}
}

// inlineDataFlag marks an inode whose i_block holds literal data (in this
// package's scope, only inline symlink targets) rather than an extent tree.
const inlineDataFlag = 0x10000000

// Inode is a parsed inode record: the base 128-byte structure, plus the
// extra area when the filesystem's inode_size exceeds 128.
type Inode struct {
	rec    record
	Number uint32

	Mode        uint16
	UID         uint16
	SizeLo      uint32
	Atime       uint32
	Ctime       uint32
	Mtime       uint32
	Dtime       uint32
	GID         uint16
	LinksCount  uint16
	BlocksLo    uint32
	Flags       uint32
	Block       [iBlockLen]byte
	Generation  uint32
	ChecksumLo  uint16

	HasExtra   bool
	ExtraIsize uint16
	ChecksumHi uint16
}

// FileType derives the file-type enum from the inode's mode.
func (in *Inode) FileType() FileType {
	return FileType(in.Mode >> 12)
}

// Permissions returns the low 12 bits of mode (the POSIX permission bits).
func (in *Inode) Permissions() uint16 {
	return in.Mode & 0xFFF
}

// IsInlineSymlink reports whether this inode is a symlink whose target is
// stored literally in i_block rather than via an extent tree.
func (in *Inode) IsInlineSymlink() bool {
	return in.FileType() == FileTypeSymlink && in.Flags == inlineDataFlag
}

// locateInode returns the group number and within-group index for inode
// number n. Inode numbers are 1-based; n == 0 is invalid.
func locateInode(n uint32, inodesPerGroup uint32) (group, idx uint32, err error) {
	if n == 0 {
		return 0, 0, &InvalidInodeError{Inode: n, Reason: "inode 0 does not exist"}
	}
	group = (n - 1) / inodesPerGroup
	idx = (n - 1) % inodesPerGroup
	return group, idx, nil
}

func inodeFromBytes(b []byte, n uint32, inodeSize uint16) (*Inode, error) {
	base := b
	if len(b) > inodeBaseSize {
		base = b[:inodeBaseSize]
	}
	rec, err := newRecord(base, inodeBaseSize, "inode")
	if err != nil {
		return nil, err
	}
	in := &Inode{
		rec:        rec,
		Number:     n,
		Mode:       rec.uint16(iOffMode),
		UID:        rec.uint16(iOffUID),
		SizeLo:     rec.uint32(iOffSizeLo),
		Atime:      rec.uint32(iOffAtime),
		Ctime:      rec.uint32(iOffCtime),
		Mtime:      rec.uint32(iOffMtime),
		Dtime:      rec.uint32(iOffDtime),
		GID:        rec.uint16(iOffGID),
		LinksCount: rec.uint16(iOffLinksCount),
		BlocksLo:   rec.uint32(iOffBlocksLo),
		Flags:      rec.uint32(iOffFlags),
		Generation: rec.uint32(iOffGeneration),
		ChecksumLo: rec.uint16(iOffChecksumLo),
	}
	copy(in.Block[:], rec.bytesAt(iOffBlock, iBlockLen))

	if inodeSize > inodeBaseSize && len(b) >= inodeBaseSize+inodeExtraSize {
		extra := b[inodeBaseSize : inodeBaseSize+inodeExtraSize]
		extraIsize := uint16(extra[0]) | uint16(extra[1])<<8
		if extraIsize != 0 {
			in.HasExtra = true
			in.ExtraIsize = extraIsize
			in.ChecksumHi = uint16(extra[2]) | uint16(extra[3])<<8
		}
	}
	return in, nil
}

func (in *Inode) toBytes() []byte {
	r := in.rec
	r.putUint16(iOffMode, in.Mode)
	r.putUint16(iOffUID, in.UID)
	r.putUint32(iOffSizeLo, in.SizeLo)
	r.putUint32(iOffAtime, in.Atime)
	r.putUint32(iOffCtime, in.Ctime)
	r.putUint32(iOffMtime, in.Mtime)
	r.putUint32(iOffDtime, in.Dtime)
	r.putUint16(iOffGID, in.GID)
	r.putUint16(iOffLinksCount, in.LinksCount)
	r.putUint32(iOffBlocksLo, in.BlocksLo)
	r.putUint32(iOffFlags, in.Flags)
	r.putBytes(iOffBlock, in.Block[:])
	r.putUint32(iOffGeneration, in.Generation)
	r.putUint16(iOffChecksumLo, in.ChecksumLo)
	return r.bytes()
}

// expectedChecksum implements §4.4: the canonical input is
// uuid || inode_number || generation || inode_bytes_with_checksum_fields_zeroed.
// Width is 32 bits when the inode carries a populated extra area
// (checksum_hi), 16 bits otherwise.
func (in *Inode) expectedChecksum(u []byte) (expected uint32, width int) {
	numberBytes := le32(in.Number)
	genBytes := le32(in.Generation)

	zeroed := in.toBytes()
	zeroed[iOffChecksumLo], zeroed[iOffChecksumLo+1] = 0, 0

	input := make([]byte, 0, len(u)+8+len(zeroed))
	input = append(input, u...)
	input = append(input, numberBytes...)
	input = append(input, genBytes...)
	input = append(input, zeroed...)

	full := crc.Complement32c(input)
	if in.HasExtra {
		return full, 32
	}
	return full & 0xFFFF, 16
}

// actualChecksum reassembles the stored checksum from checksum_lo (and
// checksum_hi, when present).
func (in *Inode) actualChecksum() uint32 {
	if in.HasExtra {
		return uint32(in.ChecksumHi)<<16 | uint32(in.ChecksumLo)
	}
	return uint32(in.ChecksumLo)
}

// VerifyChecksum reports whether the inode's stored checksum matches its
// expected value, per §4.4.
func (in *Inode) VerifyChecksum(uuidBytes []byte) (expected, actual uint32, width int, ok bool) {
	expected, width = in.expectedChecksum(uuidBytes)
	actual = in.actualChecksum()
	return expected, actual, width, expected == actual
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// RawBytes returns the inode's current 128-byte base record, for debug
// hex-dumping.
func (in *Inode) RawBytes() []byte {
	return in.rec.bytes()
}

// GetInode implements §4.4 Locate+GetInode: find inode n's group and
// within-group index, read inode_size bytes from the group's inode table,
// and parse the base record plus the extra area when present.
func (s *Session) GetInode(n uint32) (*Inode, error) {
	gd, idx, err := s.GroupFor(n)
	if err != nil {
		return nil, err
	}
	tableOffset := int64(gd.InodeTable)*int64(s.SB.BlockSize()) + int64(idx)*int64(s.SB.InodeSize)
	b, err := s.readAt(tableOffset, int(s.SB.InodeSize))
	if err != nil {
		return nil, err
	}
	return inodeFromBytes(b, n, s.SB.InodeSize)
}

// inodeTableOffset returns the byte offset of inode n's record, for
// callers (the writer) that need to overwrite a single inode's bytes.
func (s *Session) inodeTableOffset(n uint32) (int64, error) {
	gd, idx, err := s.GroupFor(n)
	if err != nil {
		return 0, err
	}
	return int64(gd.InodeTable)*int64(s.SB.BlockSize()) + int64(idx)*int64(s.SB.InodeSize), nil
}
