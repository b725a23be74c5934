package ext4

import (
	"sort"

	"github.com/sirupsen/logrus"
)

const reservedInodeCeiling = 12

// Finding is one fsck diagnostic. Findings are data, not errors: they are
// never raised or wrapped, only produced into the stream a caller consumes
// (§7 policy, §9 "Error vs. data").
type Finding interface {
	isFinding()
}

// WrongSuperBlockChecksum reports that the superblock's CRC32C self-check
// failed (Pass 0).
type WrongSuperBlockChecksum struct{}

func (WrongSuperBlockChecksum) isFinding() {}

// WrongBlockGroupDescriptorChecksum reports a group descriptor whose
// 16-bit checksum does not match its expected value (Pass 0).
type WrongBlockGroupDescriptorChecksum struct {
	Group    uint32
	Expected uint16
	Actual   uint16
}

func (WrongBlockGroupDescriptorChecksum) isFinding() {}

// WrongBlockBitmapChecksum reports a group whose block bitmap checksum
// does not match (Pass 1).
type WrongBlockBitmapChecksum struct {
	Group    uint32
	Expected uint32
	Actual   uint32
}

func (WrongBlockBitmapChecksum) isFinding() {}

// WrongInodeBitmapChecksum reports a group whose inode bitmap checksum
// does not match (Pass 1).
type WrongInodeBitmapChecksum struct {
	Group    uint32
	Expected uint32
	Actual   uint32
}

func (WrongInodeBitmapChecksum) isFinding() {}

// WrongInodeChecksum reports an inode whose stored checksum does not
// match its expected value (Pass 1, §4.4).
type WrongInodeChecksum struct {
	Inode    uint32
	Expected uint32
	Actual   uint32
	Width    int
}

func (WrongInodeChecksum) isFinding() {}

// SharedBlock reports that Inode shares one or more physical blocks with
// other inodes. Blocks and Inodes are sorted ascending so two findings
// describing the same coincidence compare equal regardless of map
// iteration order.
type SharedBlock struct {
	Inode  uint32
	Blocks []uint64
	Inodes []uint32
}

func (SharedBlock) isFinding() {}

// UnconnectedInode reports an allocated, non-reserved inode that Pass 3's
// directory-tree walk from the root never reached.
type UnconnectedInode struct {
	Inode uint32
}

func (UnconnectedInode) isFinding() {}

// fsckState is the per-invocation tracker replacing the reference
// implementation's process-wide mutable state (§9): built fresh by Fsck
// and discarded when it returns, so independent invocations never leak
// state into one another.
type fsckState struct {
	blockOwners map[uint64][]uint32
	allocated   map[uint32]bool
	connected   map[uint32]bool
}

func newFsckState() *fsckState {
	return &fsckState{
		blockOwners: make(map[uint64][]uint32),
		allocated:   make(map[uint32]bool),
		connected:   make(map[uint32]bool),
	}
}

func debugf(logger *logrus.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Debugf(format, args...)
	}
}

func infof(logger *logrus.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Infof(format, args...)
	}
}

// Fsck implements §4.9: three passes (0, 1, 3; pass 2 is absent) producing
// a stream of Findings. yield is called once per finding in the order
// produced; it may return false to stop consumption early, in which case
// Fsck returns immediately without running later passes. logger may be
// nil for silent operation.
func (s *Session) Fsck(logger *logrus.Logger, yield func(Finding) bool) error {
	state := newFsckState()

	infof(logger, "fsck: pass 0 (superblock & group descriptors)")
	cont, err := s.fsckPass0(logger, yield)
	if err != nil || !cont {
		return err
	}

	infof(logger, "fsck: pass 1 (bitmaps & inodes)")
	cont, err = s.fsckPass1(logger, state, yield)
	if err != nil || !cont {
		return err
	}

	infof(logger, "fsck: pass 3 (connectivity)")
	return s.fsckPass3(logger, state, yield)
}

func (s *Session) fsckPass0(logger *logrus.Logger, yield func(Finding) bool) (bool, error) {
	if !s.SB.verifyChecksum() {
		if !yield(WrongSuperBlockChecksum{}) {
			return false, nil
		}
	}

	if s.SB.HasIncompat(FeatureIncompatUninitBG) {
		debugf(logger, "fsck: uninit_bg set, skipping group descriptor checksum validation")
		return true, nil
	}
	for _, gd := range s.Groups {
		expected, ok := gd.verifyChecksum(s.SB.UUID[:])
		if !ok {
			if !yield(WrongBlockGroupDescriptorChecksum{Group: gd.Number, Expected: expected, Actual: gd.Checksum}) {
				return false, nil
			}
		}
	}
	return true, nil
}

func (s *Session) fsckPass1(logger *logrus.Logger, state *fsckState, yield func(Finding) bool) (bool, error) {
	for _, gd := range s.Groups {
		if !gd.BlockBitmapUninit() {
			bm, err := s.ReadBlockBitmap(gd)
			if err != nil {
				return false, err
			}
			actual := bm.Checksum(s.SB.UUID[:])
			if actual != gd.BlockBitmapCsum {
				if !yield(WrongBlockBitmapChecksum{Group: gd.Number, Expected: actual, Actual: gd.BlockBitmapCsum}) {
					return false, nil
				}
			}
		}

		if gd.InodeUninit() {
			continue
		}

		inodeBm, err := s.ReadInodeBitmap(gd)
		if err != nil {
			return false, err
		}
		inodeBmActual := inodeBm.Checksum(s.SB.UUID[:])
		if inodeBmActual != gd.InodeBitmapCsum {
			if !yield(WrongInodeBitmapChecksum{Group: gd.Number, Expected: inodeBmActual, Actual: gd.InodeBitmapCsum}) {
				return false, nil
			}
		}

		for _, localIdx := range inodeBm.IterUsed() {
			n := gd.Number*s.SB.InodesPerGroup + uint32(localIdx) + 1
			state.allocated[n] = true

			in, err := s.GetInode(n)
			if err != nil {
				debugf(logger, "fsck: inode %d: %v", n, err)
				continue
			}
			expected, actual, width, ok := in.VerifyChecksum(s.SB.UUID[:])
			if !ok {
				if !yield(WrongInodeChecksum{Inode: n, Expected: expected, Actual: actual, Width: width}) {
					return false, nil
				}
			}

			extents, err := s.Extents(in)
			if err != nil || extents == nil {
				// No extent tree (or unreadable): the reference
				// implementation treats this as "not implemented" for
				// block accounting and moves on rather than aborting.
				continue
			}
			for _, ext := range extents {
				if ext.Uninit {
					continue
				}
				for b := ext.PhysicalStart; b < ext.PhysicalStart+uint64(ext.Length); b++ {
					state.blockOwners[b] = append(state.blockOwners[b], n)
				}
			}
		}
	}

	findings := sharedBlockFindings(state.blockOwners)
	for _, f := range findings {
		if !yield(f) {
			return false, nil
		}
	}
	return true, nil
}

// sharedBlockFindings derives, for every inode that owns at least one
// multiply-claimed block, the set of blocks it shares and the set of peer
// inodes it shares them with (§4.9 Pass 1's closing step).
func sharedBlockFindings(blockOwners map[uint64][]uint32) []Finding {
	blocksByInode := make(map[uint32]map[uint64]struct{})
	peersByInode := make(map[uint32]map[uint32]struct{})

	for block, owners := range blockOwners {
		if len(owners) < 2 {
			continue
		}
		for _, owner := range owners {
			if blocksByInode[owner] == nil {
				blocksByInode[owner] = make(map[uint64]struct{})
				peersByInode[owner] = make(map[uint32]struct{})
			}
			blocksByInode[owner][block] = struct{}{}
			for _, peer := range owners {
				if peer != owner {
					peersByInode[owner][peer] = struct{}{}
				}
			}
		}
	}

	var inodes []uint32
	for n := range blocksByInode {
		inodes = append(inodes, n)
	}
	sort.Slice(inodes, func(i, j int) bool { return inodes[i] < inodes[j] })

	var out []Finding
	for _, n := range inodes {
		blocks := sortedUint64Keys(blocksByInode[n])
		peers := sortedUint32Keys(peersByInode[n])
		out = append(out, SharedBlock{Inode: n, Blocks: blocks, Inodes: peers})
	}
	return out
}

func sortedUint64Keys(m map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedUint32Keys(m map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Session) fsckPass3(logger *logrus.Logger, state *fsckState, yield func(Finding) bool) error {
	if err := s.markConnected(rootInode, state); err != nil {
		return err
	}

	var allocated []uint32
	for n := range state.allocated {
		allocated = append(allocated, n)
	}
	sort.Slice(allocated, func(i, j int) bool { return allocated[i] < allocated[j] })

	for _, n := range allocated {
		if n <= reservedInodeCeiling {
			continue
		}
		if !state.connected[n] {
			if !yield(UnconnectedInode{Inode: n}) {
				return nil
			}
		}
	}
	return nil
}

// markConnected walks the directory tree from n, recording every reached
// inode as connected. It is the lazy recursive sequence of §9 collapsed
// into an eager walk, since fsck always needs the full connectivity set.
func (s *Session) markConnected(n uint32, state *fsckState) error {
	if state.connected[n] {
		return nil
	}
	state.connected[n] = true

	in, err := s.GetInode(n)
	if err != nil {
		return nil
	}
	if in.FileType() != FileTypeDir {
		return nil
	}
	nodes, err := s.IterDir(n, false)
	if err != nil {
		return nil
	}
	for _, node := range nodes {
		if node.Entry.Name == "." || node.Entry.Name == ".." {
			continue
		}
		if err := s.markConnected(node.Entry.Inode, state); err != nil {
			return err
		}
	}
	return nil
}
