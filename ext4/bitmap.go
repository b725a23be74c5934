package ext4

import "github.com/nikifkon/ext4-tools/util/bitmap"

// ReadBlockBitmap reads and parses a group's block bitmap. Per §9 open
// question, blocks_per_group is assumed to be a byte multiple, as in
// practice every real ext4 image satisfies.
func (s *Session) ReadBlockBitmap(gd *GroupDescriptor) (*bitmap.Bitmap, error) {
	length := int(s.SB.BlocksPerGroup / 8)
	b, err := s.readAt(int64(gd.BlockBitmap)*int64(s.SB.BlockSize()), length)
	if err != nil {
		return nil, err
	}
	return bitmap.FromBytes(b), nil
}

// ReadInodeBitmap reads and parses a group's inode bitmap.
func (s *Session) ReadInodeBitmap(gd *GroupDescriptor) (*bitmap.Bitmap, error) {
	length := int(s.SB.InodesPerGroup / 8)
	b, err := s.readAt(int64(gd.InodeBitmap)*int64(s.SB.BlockSize()), length)
	if err != nil {
		return nil, err
	}
	return bitmap.FromBytes(b), nil
}

// writeInodeBitmap overwrites a group's inode bitmap in place.
func (s *Session) writeInodeBitmap(gd *GroupDescriptor, bm *bitmap.Bitmap) error {
	return s.writeAt(int64(gd.InodeBitmap)*int64(s.SB.BlockSize()), bm.ToBytes())
}

// FreeInode clears inode n's bit in its group's inode bitmap. It does not
// touch block bitmaps: reclaiming an inode's blocks is an explicit
// limitation of the minimal writer (§4.8).
func (s *Session) FreeInode(n uint32) error {
	if err := s.requireWritable("free inode"); err != nil {
		return err
	}
	gd, idx, err := s.GroupFor(n)
	if err != nil {
		return err
	}
	bm, err := s.ReadInodeBitmap(gd)
	if err != nil {
		return err
	}
	if err := bm.Clear(int(idx)); err != nil {
		return err
	}
	return s.writeInodeBitmap(gd, bm)
}
