package ext4

import "encoding/binary"

const minDirEntryLength = 8
const maxNameLen = 255

// DirEntry is one dir_entry_2 record: a name bound to an inode number
// within a directory's logical byte stream.
type DirEntry struct {
	Inode    uint32
	RecLen   uint16
	NameLen  uint8
	FileType uint8
	Name     string
}

// parseDirEntry reads one dir_entry_2 starting at offset in b. It returns
// the entry; callers advance to the next record by its RecLen. inode == 0 marks
// a tombstoned slot: the name field, if any, is not meaningful.
func parseDirEntry(b []byte, offset int) (DirEntry, error) {
	if offset+minDirEntryLength > len(b) {
		return DirEntry{}, &InvalidInodeError{Reason: "truncated directory entry"}
	}
	inode := binary.LittleEndian.Uint32(b[offset:])
	recLen := binary.LittleEndian.Uint16(b[offset+4:])
	nameLen := b[offset+6]
	fileType := b[offset+7]

	entry := DirEntry{
		Inode:    inode,
		RecLen:   recLen,
		NameLen:  nameLen,
		FileType: fileType,
	}
	if inode != 0 {
		nameStart := offset + minDirEntryLength
		nameEnd := nameStart + int(nameLen)
		if nameEnd > len(b) {
			return DirEntry{}, &InvalidInodeError{Reason: "directory entry name overruns buffer"}
		}
		entry.Name = string(b[nameStart:nameEnd])
	}
	return entry, nil
}

// encodeDirEntry packs a new directory entry's bytes: the 8-byte fixed
// header followed by the literal name. recLen is caller-supplied since it
// may include absorbed slack beyond the entry's minimal size.
func encodeDirEntry(inode uint32, recLen uint16, name string, fileType uint8) ([]byte, error) {
	if len(name) > maxNameLen {
		return nil, &NameTooLongError{Name: name}
	}
	out := make([]byte, minDirEntryLength+len(name))
	binary.LittleEndian.PutUint32(out, inode)
	binary.LittleEndian.PutUint16(out[4:], recLen)
	out[6] = byte(len(name))
	out[7] = fileType
	copy(out[minDirEntryLength:], name)
	return out, nil
}

// minEntrySize is the smallest rec_len a directory entry for this name can
// have: the 8-byte header plus the name, unrounded. The on-disk format
// aligns real entries to 4 bytes, but slack accounting (tryInsertIntoSpace)
// works against this exact, unrounded value per §4.8.
func minEntrySize(nameLen int) uint16 {
	return uint16(minDirEntryLength + nameLen)
}
