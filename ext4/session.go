package ext4

import (
	"fmt"
	"io"
	"os"
)

// backend is the minimal positional I/O surface a session needs. A plain
// *os.File satisfies it directly; tests use an in-memory implementation
// instead of a temp file. Using ReaderAt/WriterAt rather than a shared
// Seek cursor sidesteps the seek-save/restore bookkeeping entirely: every
// read and write names its own offset, so nothing needs to remember or
// restore a cursor position across a recursive extent-tree descent (§5,
// §9 "Seek-save/restore").
type backend interface {
	io.ReaderAt
	io.WriterAt
}

// Session owns an open image for its lifetime: the backing file handle,
// and the parsed superblock and group-descriptor vector. It is the sole
// entry point for constructing inodes, extents and directory views.
type Session struct {
	b        backend
	closer   io.Closer
	writable bool

	SB     *Superblock
	Groups []*GroupDescriptor
}

// Open parses an ext4 image from path. writable selects read-only vs.
// read-write mode; mutating operations (Unlink, Rm, Mv, UpdateFile) fail
// with ReadOnlyError unless writable is true.
func Open(path string, writable bool) (*Session, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, &OpenError{Reason: err.Error()}
	}
	sess, err := newSession(f, f, writable)
	if err != nil {
		f.Close()
		return nil, err
	}
	return sess, nil
}

// newSession builds a session over an arbitrary backend, implementing the
// five initialization steps of §4.2.
func newSession(b backend, closer io.Closer, writable bool) (*Session, error) {
	sbBytes := make([]byte, superblockSize)
	if _, err := b.ReadAt(sbBytes, superblockOffset); err != nil {
		return nil, &OpenError{Reason: fmt.Sprintf("reading superblock: %v", err)}
	}
	sb, err := superblockFromBytes(sbBytes)
	if err != nil {
		return nil, err
	}

	if !sb.HasIncompat(FeatureIncompatExtents) {
		return nil, &UnsupportedFeatureError{Reason: "INCOMPAT_EXTENTS not set"}
	}
	if !sb.HasIncompat(FeatureIncompatFiletype) {
		return nil, &UnsupportedFeatureError{Reason: "INCOMPAT_FILETYPE not set"}
	}

	blockSize := sb.BlockSize()
	var gdtStart uint64
	if blockSize != 1024 {
		gdtStart = blockSize
	} else {
		gdtStart = 0x800
	}

	groupCount := sb.GroupCount()
	groups := make([]*GroupDescriptor, 0, groupCount)
	for i := uint64(0); i < groupCount; i++ {
		gdBytes := make([]byte, sb.DescSize)
		offset := int64(gdtStart) + int64(i)*int64(sb.DescSize)
		if _, err := b.ReadAt(gdBytes, offset); err != nil {
			return nil, &OpenError{Reason: fmt.Sprintf("reading group descriptor %d: %v", i, err)}
		}
		gd, err := groupDescriptorFromBytes(gdBytes, sb.DescSize, uint32(i))
		if err != nil {
			return nil, err
		}
		groups = append(groups, gd)
	}

	return &Session{
		b:        b,
		closer:   closer,
		writable: writable,
		SB:       sb,
		Groups:   groups,
	}, nil
}

// Close releases the underlying file handle.
func (s *Session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Writable reports whether the session was opened for mutation.
func (s *Session) Writable() bool {
	return s.writable
}

func (s *Session) requireWritable(op string) error {
	if !s.writable {
		return &ReadOnlyError{Op: op}
	}
	return nil
}

// readAt reads length bytes at a byte offset.
func (s *Session) readAt(offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := s.b.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeAt overwrites bytes at a byte offset.
func (s *Session) writeAt(offset int64, data []byte) error {
	_, err := s.b.WriteAt(data, offset)
	return err
}

// readBlock reads one filesystem block given its block number, satisfying
// the blockReader interface extent-tree traversal needs.
func (s *Session) readBlock(blockNum uint64) ([]byte, error) {
	return s.readAt(int64(blockNum)*int64(s.SB.BlockSize()), int(s.SB.BlockSize()))
}

// GroupFor returns the group descriptor owning inode number n.
func (s *Session) GroupFor(n uint32) (*GroupDescriptor, uint32, error) {
	g, idx, err := locateInode(n, s.SB.InodesPerGroup)
	if err != nil {
		return nil, 0, err
	}
	if int(g) >= len(s.Groups) {
		return nil, 0, &InvalidInodeError{Inode: n, Reason: "group out of range"}
	}
	return s.Groups[g], idx, nil
}
