// Package crc provides the CRC32C (Castagnoli) primitive used throughout
// ext4 metadata checksums: superblock, group descriptors, bitmaps and inodes
// all hash some byte sequence with this polynomial and then complement the
// result.
package crc

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum32c returns the raw (non-complemented) CRC32C of b.
func Checksum32c(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}

// Complement32c returns ^crc32c(b), the form ext4 stores on disk for
// checksums that cover a structure including its own (zeroed) checksum
// field.
func Complement32c(b []byte) uint32 {
	return ^Checksum32c(b)
}
