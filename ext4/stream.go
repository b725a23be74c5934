package ext4

import (
	"io"
)

// FileStream produces the byte sequence for one inode, one extent leaf at
// a time. It honors i_size truncation (the final leaf may be only
// partially emitted) and the inline-symlink special case. It is lazy,
// restartable (call Stream again from the inode number) and finite,
// satisfying §4.6 and the "no suspension points" model of §5.
type FileStream struct {
	sess   *Session
	inode  *Inode
	blockS uint64

	inline     []byte
	inlineRead bool

	extents   []Extent
	extentIdx int
	remaining int64 // bytes left to emit, decremented per leaf (§4.6 step 3)

	pending []byte // bytes read from the current leaf not yet delivered
}

// Stream opens a lazy byte stream over inode n's contents.
func (s *Session) Stream(n uint32) (*FileStream, error) {
	in, err := s.GetInode(n)
	if err != nil {
		return nil, err
	}
	fs := &FileStream{
		sess:      s,
		inode:     in,
		blockS:    s.SB.BlockSize(),
		remaining: int64(in.SizeLo),
	}
	if in.IsInlineSymlink() {
		n := int(in.SizeLo)
		if n > len(in.Block) {
			n = len(in.Block)
		}
		fs.inline = in.Block[:n]
		return fs, nil
	}
	extents, err := s.Extents(in)
	if err != nil {
		return nil, err
	}
	fs.extents = extents
	return fs, nil
}

// Read implements io.Reader.
func (fs *FileStream) Read(p []byte) (int, error) {
	if fs.inline != nil {
		if fs.inlineRead {
			return 0, io.EOF
		}
		n := copy(p, fs.inline)
		if n >= len(fs.inline) {
			fs.inlineRead = true
		} else {
			fs.inline = fs.inline[n:]
		}
		return n, nil
	}

	for len(fs.pending) == 0 {
		if fs.remaining <= 0 || fs.extentIdx >= len(fs.extents) {
			return 0, io.EOF
		}
		ext := fs.extents[fs.extentIdx]
		fs.extentIdx++
		if ext.Uninit {
			continue
		}
		leafBytes := int64(ext.Length) * int64(fs.blockS)
		data, err := fs.sess.readAt(int64(ext.PhysicalStart)*int64(fs.blockS), int(leafBytes))
		if err != nil {
			return 0, err
		}
		if fs.remaining < leafBytes {
			data = data[:fs.remaining]
		}
		fs.remaining -= int64(len(data))
		fs.pending = data
	}

	n := copy(p, fs.pending)
	fs.pending = fs.pending[n:]
	return n, nil
}

// ReadFile materializes an inode's full contents; a convenience wrapper
// around Stream for callers (dump, cat) that want the whole buffer.
func (s *Session) ReadFile(n uint32) ([]byte, error) {
	fs, err := s.Stream(n)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(fs)
}
