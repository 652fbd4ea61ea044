package protocol

import (
	"encoding/binary"
	"fmt"
)

// cursor is a forward-only reader over a byte slice used by the bundle
// decoder. All multi-byte fields are little-endian per §4.2.
type cursor struct {
	b   []byte
	pos int
}

// newCursor creates a cursor for reading from b with the initial read position set to 0.
func newCursor(b []byte) *cursor {
	return &cursor{b: b, pos: 0}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, fmt.Errorf("parse: truncated")
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readU8() (byte, error) {
	b, err := c.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) readU16LE() (uint16, error) {
	b, err := c.readExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readU64LE() (uint64, error) {
	b, err := c.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readLenPrefixedBytes reads a 32-bit LE length prefix followed by that many
// bytes, rejecting lengths over cap. UTF-8 validation is the caller's job.
func (c *cursor) readLenPrefixedBytes(cap uint32) ([]byte, error) {
	n, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	if n > cap {
		return nil, fmt.Errorf("parse: length %d exceeds cap %d", n, cap)
	}
	return c.readExact(int(n))
}
