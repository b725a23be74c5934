package bitmap

import (
	"fmt"

	"github.com/nikifkon/ext4-tools/ext4/crc"
)

// Bitmap is a structure holding a bitmap
type Bitmap struct {
	bits []byte
}

// FromBytes create a bitmap struct from bytes
func FromBytes(b []byte) *Bitmap {
	// just copy them over
	bits := make([]byte, len(b))
	copy(bits, b)
	bm := Bitmap{
		bits: bits,
	}

	return &bm
}

// NewBytes creates a new bitmap of size bytes; it is not in bits to force the caller to have
// a complete set
func NewBytes(nbytes int) *Bitmap {
	if nbytes < 0 {
		nbytes = 0
	}
	bm := Bitmap{
		bits: make([]byte, nbytes),
	}
	return &bm
}

// NewBits creates a new bitmap that can address nBits entries.
// All bits are initially 0 (free).
func NewBits(nBits int) *Bitmap {
	if nBits < 0 {
		nBits = 0
	}
	nBytes := (nBits + 7) / 8
	return NewBytes(nBytes)
}

// ToBytes returns raw bytes underlying the bitmap
func (bm *Bitmap) ToBytes() []byte {
	b := make([]byte, len(bm.bits))
	copy(b, bm.bits)

	return b
}

// FromBytes overwrite the existing map with the contents of the bytes.
// It is the equivalent of BitmapFromBytes, but uses an existing Bitmap.
func (bm *Bitmap) FromBytes(b []byte) {
	bm.bits = make([]byte, len(b))
	copy(bm.bits, b)
}

// IsSet check if a specific bit location is set
func (bm *Bitmap) IsSet(location int) (bool, error) {
	if location < 0 {
		return false, fmt.Errorf("location %d is negative", location)
	}
	byteNumber, bitNumber := findBitForIndex(location)
	if byteNumber >= len(bm.bits) {
		return false, fmt.Errorf("location %d is not in %d size bitmap", location, len(bm.bits)*8)
	}
	mask := byte(0x1) << bitNumber
	return bm.bits[byteNumber]&mask == mask, nil
}

// Clear a specific bit location
func (bm *Bitmap) Clear(location int) error {
	if location < 0 {
		return fmt.Errorf("location %d is negative", location)
	}
	byteNumber, bitNumber := findBitForIndex(location)
	if byteNumber >= len(bm.bits) {
		return fmt.Errorf("location %d is not in %d size bitmap", location, len(bm.bits)*8)
	}
	mask := byte(0x1) << bitNumber
	mask = ^mask
	bm.bits[byteNumber] &= mask
	return nil
}

// Set a specific bit location
func (bm *Bitmap) Set(location int) error {
	if location < 0 {
		return fmt.Errorf("location %d is negative", location)
	}
	byteNumber, bitNumber := findBitForIndex(location)
	if byteNumber >= len(bm.bits) {
		return fmt.Errorf("location %d is not in %d size bitmap", location, len(bm.bits)*8)
	}
	mask := byte(0x1) << bitNumber
	bm.bits[byteNumber] |= mask
	return nil
}

func findBitForIndex(index int) (byteNumber int, bitNumber uint8) {
	return index / 8, uint8(index % 8)
}

// IterUsed returns, in index order, every bit location currently set.
func (bm *Bitmap) IterUsed() []int {
	var used []int
	for i, b := range bm.bits {
		if b == 0x00 {
			continue
		}
		for j := uint8(0); j < 8; j++ {
			if b&(byte(1)<<j) != 0 {
				used = append(used, i*8+int(j))
			}
		}
	}
	return used
}

// Checksum computes the ext4 bitmap checksum: the complement of the CRC32C
// of the filesystem UUID followed by the raw bitmap bytes.
func (bm *Bitmap) Checksum(uuid []byte) uint32 {
	buf := make([]byte, 0, len(uuid)+len(bm.bits))
	buf = append(buf, uuid...)
	buf = append(buf, bm.bits...)
	return crc.Complement32c(buf)
}
