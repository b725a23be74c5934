package ext4

import "fmt"

// OpenError reports a failure to open or validate an image at session
// construction time: an unreadable file or a rejected feature set.
type OpenError struct {
	Reason string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open: %s", e.Reason)
}

// NotFoundError reports that a path component could not be found in its
// parent directory.
type NotFoundError struct {
	Parent uint32
	Name   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %q in inode %d", e.Name, e.Parent)
}

// NotADirectoryError reports that an operation requiring a directory was
// given a non-directory inode.
type NotADirectoryError struct {
	Inode uint32
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("not a directory: inode %d", e.Inode)
}

// InvalidInodeError reports inode 0 or a malformed inode record.
type InvalidInodeError struct {
	Inode  uint32
	Reason string
}

func (e *InvalidInodeError) Error() string {
	return fmt.Sprintf("invalid inode %d: %s", e.Inode, e.Reason)
}

// NameTooLongError reports a directory-entry name exceeding the 8-bit
// name_len field.
type NameTooLongError struct {
	Name string
}

func (e *NameTooLongError) Error() string {
	return fmt.Sprintf("name too long (%d bytes): %q", len(e.Name), e.Name)
}

// NotEnoughSpaceError reports that no directory entry had enough slack to
// absorb a new entry during mv.
type NotEnoughSpaceError struct {
	Directory uint32
	Needed    int
}

func (e *NotEnoughSpaceError) Error() string {
	return fmt.Sprintf("not enough space in directory inode %d for %d bytes", e.Directory, e.Needed)
}

// ReadOnlyError reports a mutating verb invoked on a read-only session.
type ReadOnlyError struct {
	Op string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("%s requires a read-write session", e.Op)
}

// UnsupportedFeatureError reports a missing required incompat flag, or an
// extent-tree form this package does not parse.
type UnsupportedFeatureError struct {
	Reason string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported feature: %s", e.Reason)
}
