package ext4

import (
	"testing"

	"github.com/nikifkon/ext4-tools/ext4/crc"
	"github.com/nikifkon/ext4-tools/testhelper"
	"github.com/nikifkon/ext4-tools/util/bitmap"
)

// Fixture layout: a single 64-block, block-size-1024 group.
//
//	block 0: boot record        block 4: inode bitmap
//	block 1: superblock         block 5-6: inode table (16 * 128 bytes)
//	block 2: group descriptor   block 7: root directory data
//	block 3: block bitmap       block 8: hello.txt data
//	                            block 9: sub/ directory data
//	                            block 10: sub/file2.txt data
const (
	fixBlockSize      = 1024
	fixBlocksPerGroup = 64
	fixInodesPerGroup = 16
	fixTotalBlocks    = 64

	fixBlockBitmapBlock = 3
	fixInodeBitmapBlock = 4
	fixInodeTableBlock  = 5

	fixRootDataBlock  = 7
	fixHelloDataBlock = 8
	fixSubDataBlock   = 9
	fixFile2DataBlock = 10

	fixInodeHello  = 13
	fixInodeSub    = 14
	fixInodeFile2  = 15
	fixInodeOrphan = 16

	fixHelloContent = "hello world\n"
	fixFile2Content = "second file\n"
)

var fixUUID = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// buildExtentBlock returns a 60-byte i_block payload: a depth-0 extent
// header with a single leaf mapping logical block 0 to physicalStart.
func buildExtentBlock(physicalStart uint64, length uint16) [iBlockLen]byte {
	var out [iBlockLen]byte
	putUint16LEExt(out[:], ehOffMagic, extentMagic)
	putUint16LEExt(out[:], ehOffEntries, 1)
	putUint16LEExt(out[:], ehOffDepth, 0)
	copy(out[extentHeaderSize:], encodeLeafEntry(0, length, physicalStart))
	return out
}

type fixDirEntry struct {
	inode uint32
	name  string
	ft    uint8
}

func buildDirBlock(t *testing.T, entries []fixDirEntry) []byte {
	t.Helper()
	buf := make([]byte, fixBlockSize)
	offset := 0
	for i, e := range entries {
		var recLen uint16
		if i == len(entries)-1 {
			recLen = uint16(fixBlockSize - offset)
		} else {
			recLen = minEntrySize(len(e.name))
		}
		b, err := encodeDirEntry(e.inode, recLen, e.name, e.ft)
		if err != nil {
			t.Fatalf("encodeDirEntry(%q): %v", e.name, err)
		}
		copy(buf[offset:], b)
		offset += int(recLen)
	}
	return buf
}

func stampInode(in *Inode, uuid []byte) {
	in.toBytes()
	expected, _ := in.expectedChecksum(uuid)
	in.ChecksumLo = uint16(expected)
	in.toBytes()
}

func stampGroupDescriptor(gd *GroupDescriptor, uuid []byte) {
	gd.toBytes()
	expected, _ := gd.verifyChecksum(uuid)
	gd.Checksum = expected
	gd.toBytes()
}

func buildFixtureInode(t *testing.T, n uint32, mode uint16, size uint32, block [iBlockLen]byte) *Inode {
	t.Helper()
	raw := make([]byte, inodeBaseSize)
	in, err := inodeFromBytes(raw, n, inodeBaseSize)
	if err != nil {
		t.Fatalf("inodeFromBytes(%d): %v", n, err)
	}
	in.Mode = mode
	in.SizeLo = size
	in.LinksCount = 1
	in.Block = block
	stampInode(in, fixUUID)
	return in
}

func fixtureInodeTableOffset(n uint32) int64 {
	idx := (n - 1) % fixInodesPerGroup
	return fixInodeTableBlock*fixBlockSize + int64(idx)*inodeBaseSize
}

// newFixtureImage builds a complete, internally consistent ext4 image in
// memory: a root directory with hello.txt and sub/, sub/ with file2.txt,
// and one allocated-but-unreferenced inode to exercise Pass 3.
func newFixtureImage(t *testing.T) []byte {
	t.Helper()
	img := make([]byte, fixTotalBlocks*fixBlockSize)

	sbRaw := make([]byte, superblockSize)
	putUint16LEExt(sbRaw, sbOffMagic, sbMagic)
	sb, err := superblockFromBytes(sbRaw)
	if err != nil {
		t.Fatalf("superblockFromBytes: %v", err)
	}
	sb.BlocksCount = fixTotalBlocks
	sb.FirstDataBlock = 1
	sb.LogBlockSize = 0
	sb.BlocksPerGroup = fixBlocksPerGroup
	sb.InodesPerGroup = fixInodesPerGroup
	sb.InodeSize = inodeBaseSize
	sb.FeatureIncompat = FeatureIncompatExtents | FeatureIncompatFiletype
	sb.DescSize = groupDescriptorSize64
	copy(sb.UUID[:], fixUUID)
	sb.Checksum = 0
	zeroed := sb.toBytes()
	for i := 0; i < 4; i++ {
		zeroed[sbOffChecksum+i] = 0
	}
	sb.Checksum = crc.Complement32c(zeroed[:sbOffChecksum])
	copy(img[superblockOffset:], sb.toBytes())

	blockBitmap := bitmap.NewBits(fixBlocksPerGroup)
	for b := 0; b <= fixFile2DataBlock; b++ {
		if err := blockBitmap.Set(b); err != nil {
			t.Fatalf("blockBitmap.Set(%d): %v", b, err)
		}
	}
	copy(img[fixBlockBitmapBlock*fixBlockSize:], blockBitmap.ToBytes())

	inodeBitmap := bitmap.NewBits(fixInodesPerGroup)
	for _, n := range []uint32{rootInode, fixInodeHello, fixInodeSub, fixInodeFile2, fixInodeOrphan} {
		if err := inodeBitmap.Set(int((n - 1) % fixInodesPerGroup)); err != nil {
			t.Fatalf("inodeBitmap.Set(%d): %v", n, err)
		}
	}
	copy(img[fixInodeBitmapBlock*fixBlockSize:], inodeBitmap.ToBytes())

	gdRaw := make([]byte, groupDescriptorSize64)
	gd, err := groupDescriptorFromBytes(gdRaw, groupDescriptorSize64, 0)
	if err != nil {
		t.Fatalf("groupDescriptorFromBytes: %v", err)
	}
	gd.BlockBitmap = fixBlockBitmapBlock
	gd.InodeBitmap = fixInodeBitmapBlock
	gd.InodeTable = fixInodeTableBlock
	gd.BlockBitmapCsum = blockBitmap.Checksum(fixUUID)
	gd.InodeBitmapCsum = inodeBitmap.Checksum(fixUUID)
	stampGroupDescriptor(gd, fixUUID)
	copy(img[2*fixBlockSize:], gd.toBytes())

	rootBlock := buildDirBlock(t, []fixDirEntry{
		{rootInode, ".", FileTypeDir.DirEntryFileType()},
		{rootInode, "..", FileTypeDir.DirEntryFileType()},
		{fixInodeHello, "hello.txt", FileTypeRegular.DirEntryFileType()},
		{fixInodeSub, "sub", FileTypeDir.DirEntryFileType()},
	})
	copy(img[fixRootDataBlock*fixBlockSize:], rootBlock)

	subBlock := buildDirBlock(t, []fixDirEntry{
		{fixInodeSub, ".", FileTypeDir.DirEntryFileType()},
		{rootInode, "..", FileTypeDir.DirEntryFileType()},
		{fixInodeFile2, "file2.txt", FileTypeRegular.DirEntryFileType()},
	})
	copy(img[fixSubDataBlock*fixBlockSize:], subBlock)

	copy(img[fixHelloDataBlock*fixBlockSize:], fixHelloContent)
	copy(img[fixFile2DataBlock*fixBlockSize:], fixFile2Content)

	rootMode := uint16(FileTypeDir)<<12 | 0o755
	regMode := uint16(FileTypeRegular)<<12 | 0o644

	root := buildFixtureInode(t, rootInode, rootMode, fixBlockSize, buildExtentBlock(fixRootDataBlock, 1))
	hello := buildFixtureInode(t, fixInodeHello, regMode, uint32(len(fixHelloContent)), buildExtentBlock(fixHelloDataBlock, 1))
	sub := buildFixtureInode(t, fixInodeSub, rootMode, fixBlockSize, buildExtentBlock(fixSubDataBlock, 1))
	file2 := buildFixtureInode(t, fixInodeFile2, regMode, uint32(len(fixFile2Content)), buildExtentBlock(fixFile2DataBlock, 1))
	orphan := buildFixtureInode(t, fixInodeOrphan, regMode, 0, [iBlockLen]byte{})

	for _, in := range []*Inode{root, hello, sub, file2, orphan} {
		copy(img[fixtureInodeTableOffset(in.Number):], in.toBytes())
	}

	return img
}

func openFixture(t *testing.T, writable bool) (*Session, []byte) {
	t.Helper()
	img := newFixtureImage(t)
	sess, err := newSession(testhelper.NewMemFile(img), nil, writable)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	return sess, img
}
