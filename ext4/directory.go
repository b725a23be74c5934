package ext4

import "strings"

const rootInode = 2

// DirNode is one entry yielded while iterating a directory: the raw
// dir_entry_2 fields, the entry's logical byte offset within its parent
// (the writer needs this to splice entries in place), and a lazy
// sub-iterator for recursive descent.
type DirNode struct {
	Entry  DirEntry
	Offset int

	children func() ([]DirNode, error)
}

// Children materializes this node's children. It is only non-empty when
// IterDir was called with recursive == true and the entry is a directory
// other than "." or "..".
func (n DirNode) Children() ([]DirNode, error) {
	if n.children == nil {
		return nil, nil
	}
	return n.children()
}

// IterDir implements §4.7: walk a directory's dir_entry_2 records,
// skipping tombstoned (inode == 0) slots, and optionally attach a lazy
// child sequence to directory entries for recursive traversal.
func (s *Session) IterDir(n uint32, recursive bool) ([]DirNode, error) {
	in, err := s.GetInode(n)
	if err != nil {
		return nil, err
	}
	if in.FileType() != FileTypeDir {
		return nil, &NotADirectoryError{Inode: n}
	}
	buf, err := s.ReadFile(n)
	if err != nil {
		return nil, err
	}

	var nodes []DirNode
	offset := 0
	for offset+minDirEntryLength <= len(buf) {
		entry, err := parseDirEntry(buf, offset)
		if err != nil {
			return nil, err
		}
		if entry.RecLen == 0 {
			break
		}
		if entry.Inode != 0 {
			node := DirNode{Entry: entry, Offset: offset}
			if recursive && entry.FileType == FileTypeDir.DirEntryFileType() &&
				entry.Name != "." && entry.Name != ".." {
				childInode := entry.Inode
				node.children = func() ([]DirNode, error) {
					return s.IterDir(childInode, true)
				}
			}
			nodes = append(nodes, node)
		}
		offset += int(entry.RecLen)
	}
	return nodes, nil
}

// Resolve implements §4.7's path resolver: "/" is inode 2; each subsequent
// component is looked up via a non-recursive scan of the current
// directory, starting over from inode 2 for an absolute path.
func (s *Session) Resolve(path string) (uint32, error) {
	if path == "/" || path == "" {
		return rootInode, nil
	}
	trimmed := strings.TrimPrefix(path, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return rootInode, nil
	}
	components := strings.Split(trimmed, "/")

	cur := uint32(rootInode)
	for _, comp := range components {
		nodes, err := s.IterDir(cur, false)
		if err != nil {
			return 0, err
		}
		found := false
		for _, node := range nodes {
			if node.Entry.Name == comp {
				cur = node.Entry.Inode
				found = true
				break
			}
		}
		if !found {
			return 0, &NotFoundError{Parent: cur, Name: comp}
		}
	}
	return cur, nil
}
