// Package testhelper provides fixture-building support shared by this
// module's _test.go files: an in-memory io.ReaderAt/io.WriterAt stub (so
// tests build synthetic ext4 images as plain []byte buffers instead of
// temp files) and a closure-based reader/writer stub.
package testhelper

import "fmt"

type reader func(b []byte, offset int64) (int, error)
type writer func(b []byte, offset int64) (int, error)

// FileImpl is a stub backend built from reader/writer closures, used to
// fake out the handful of byte ranges a test actually cares about without
// constructing a full image.
type FileImpl struct {
	Reader reader
	Writer writer
}

// ReadAt reads at a particular offset.
func (f *FileImpl) ReadAt(b []byte, offset int64) (int, error) {
	return f.Reader(b, offset)
}

// WriteAt writes at a particular offset.
func (f *FileImpl) WriteAt(b []byte, offset int64) (int, error) {
	return f.Writer(b, offset)
}

// MemFile is a plain []byte-backed io.ReaderAt/io.WriterAt, used by
// package tests to build whole synthetic fixture images in memory.
type MemFile struct {
	Data []byte
}

// NewMemFile wraps data (not copied) as a MemFile.
func NewMemFile(data []byte) *MemFile {
	return &MemFile{Data: data}
}

func (f *MemFile) ReadAt(b []byte, offset int64) (int, error) {
	if offset < 0 || int(offset) > len(f.Data) {
		return 0, fmt.Errorf("testhelper: read at %d out of range (len %d)", offset, len(f.Data))
	}
	n := copy(b, f.Data[offset:])
	if n < len(b) {
		return n, fmt.Errorf("testhelper: short read at %d: wanted %d, got %d", offset, len(b), n)
	}
	return n, nil
}

func (f *MemFile) WriteAt(b []byte, offset int64) (int, error) {
	if offset < 0 || int(offset)+len(b) > len(f.Data) {
		return 0, fmt.Errorf("testhelper: write at %d out of range (len %d)", offset, len(f.Data))
	}
	return copy(f.Data[offset:], b), nil
}
