package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nikifkon/ext4-tools/ext4"
	"github.com/nikifkon/ext4-tools/util"
)

// debugEnabled mirrors the -debug flag; format.go reads it directly rather
// than threading it through every rendering function's argument list.
var debugEnabled bool

func runCat(sess *ext4.Session, p string) error {
	n, err := sess.Resolve(p)
	if err != nil {
		return err
	}
	stream, err := sess.Stream(n)
	if err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, stream)
	return err
}

func runStat(sess *ext4.Session, p string) error {
	n, err := sess.Resolve(p)
	if err != nil {
		return err
	}
	in, err := sess.GetInode(n)
	if err != nil {
		return err
	}

	fmt.Printf("Inode: %d\n", n)
	fmt.Printf("Type: %s\n", fileTypeName(in.FileType()))
	fmt.Printf("Permissions: %04o\n", in.Permissions())
	fmt.Printf("Flags: 0x%08x\n", in.Flags)
	fmt.Printf("Uid: %d Gid: %d\n", in.UID, in.GID)
	fmt.Printf("Size: %d\n", in.SizeLo)
	fmt.Printf("Ctime: %s\n", formatTimestamp(in.Ctime))
	fmt.Printf("Atime: %s\n", formatTimestamp(in.Atime))
	fmt.Printf("Mtime: %s\n", formatTimestamp(in.Mtime))

	fmt.Printf("Inode checksum: 0x0000%04x\n", in.ChecksumLo)

	if debugEnabled {
		fmt.Print(util.DumpByteSlice(in.RawBytes(), 16, true, true, false, nil))
	}

	if in.FileType() != ext4.FileTypeSymlink || !in.IsInlineSymlink() {
		extents, err := sess.Extents(in)
		if err == nil && len(extents) > 0 {
			fmt.Println("Logical range: Physical range")
			for _, ex := range extents {
				logEnd := uint64(ex.LogicalStart) + uint64(ex.Length) - 1
				physEnd := ex.PhysicalStart + uint64(ex.Length) - 1
				fmt.Printf("%d-%d: %d-%d\n", ex.LogicalStart, logEnd, ex.PhysicalStart, physEnd)
			}
		}
	}
	return nil
}

func formatTimestamp(ts uint32) string {
	t := time.Unix(int64(ts), 0).Local()
	return fmt.Sprintf("0x%08x -- %s", ts, t.Format("2006-01-02 15:04:05"))
}

func fileTypeName(ft ext4.FileType) string {
	switch ft {
	case ext4.FileTypeFIFO:
		return "fifo"
	case ext4.FileTypeChar:
		return "character device"
	case ext4.FileTypeDir:
		return "directory"
	case ext4.FileTypeBlock:
		return "block device"
	case ext4.FileTypeRegular:
		return "regular file"
	case ext4.FileTypeSymlink:
		return "symlink"
	case ext4.FileTypeSocket:
		return "socket"
	default:
		return "unknown"
	}
}

func runLs(sess *ext4.Session, args []string) error {
	recursive := false
	var path string
	for _, a := range args {
		if a == "-r" {
			recursive = true
			continue
		}
		path = a
	}
	if path == "" {
		path = "/"
	}

	n, err := sess.Resolve(path)
	if err != nil {
		return err
	}
	nodes, err := sess.IterDir(n, recursive)
	if err != nil {
		return err
	}
	printTree(sess, nodes, nil, recursive)
	return nil
}

// printTree renders a directory listing with box-drawing characters:
// "├── name" / "└── name" for the last entry at each depth, with ancestor
// columns drawing "│   " unless that ancestor was itself last, in which
// case "    " (§6 ls tree output).
func printTree(sess *ext4.Session, nodes []ext4.DirNode, ancestorsLast []bool, recursive bool) {
	for i, node := range nodes {
		last := i == len(nodes)-1

		var b strings.Builder
		for _, anc := range ancestorsLast {
			if anc {
				b.WriteString("    ")
			} else {
				b.WriteString("│   ")
			}
		}
		if last {
			b.WriteString("└── ")
		} else {
			b.WriteString("├── ")
		}
		b.WriteString(node.Entry.Name)
		fmt.Println(b.String())

		if recursive {
			children, err := node.Children()
			if err == nil && len(children) > 0 {
				printTree(sess, children, append(append([]bool{}, ancestorsLast...), last), recursive)
			}
		}
	}
}

func formatFinding(f ext4.Finding) string {
	switch v := f.(type) {
	case ext4.WrongSuperBlockChecksum:
		return "WrongSuperBlockChecksum"
	case ext4.WrongBlockGroupDescriptorChecksum:
		return fmt.Sprintf("WrongBlockGroupDescriptorChecksum(group=%d, expected=0x%04x, actual=0x%04x)", v.Group, v.Expected, v.Actual)
	case ext4.WrongBlockBitmapChecksum:
		return fmt.Sprintf("WrongBlockBitmapChecksum(group=%d, expected=0x%08x, actual=0x%08x)", v.Group, v.Expected, v.Actual)
	case ext4.WrongInodeBitmapChecksum:
		return fmt.Sprintf("WrongInodeBitmapChecksum(group=%d, expected=0x%08x, actual=0x%08x)", v.Group, v.Expected, v.Actual)
	case ext4.WrongInodeChecksum:
		return fmt.Sprintf("WrongInodeChecksum(inode=%d, expected=0x%x, actual=0x%x, width=%d)", v.Inode, v.Expected, v.Actual, v.Width)
	case ext4.SharedBlock:
		return fmt.Sprintf("SharedBlock(%d, blocks=%v, inodes=%v)", v.Inode, v.Blocks, v.Inodes)
	case ext4.UnconnectedInode:
		return fmt.Sprintf("UnconnectedInode(%d)", v.Inode)
	default:
		return fmt.Sprintf("%v", f)
	}
}
