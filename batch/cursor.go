package batch

import (
	"fmt"

	ctccommon "github.com/0xPolygon/ctc/common"
)

// cursor reads fixed width fields from an encoded batch. Every read is
// bounds-checked and fails with ErrInvalidEncoding instead of trusting the
// declared lengths.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *cursor) done() bool {
	return c.remaining() == 0
}

func (c *cursor) next(n int, field string) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, fmt.Errorf("%w: reading %s at offset %d: need %d bytes, %d left",
			ErrInvalidEncoding, field, c.pos, n, c.remaining())
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) readUint(width int, field string) (uint64, error) {
	b, err := c.next(width, field)
	if err != nil {
		return 0, err
	}
	return ctccommon.UintN(b), nil
}

func (c *cursor) readBytes(n int, field string) ([]byte, error) {
	b, err := c.next(n, field)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// writer appends fixed width fields, refusing values that overflow their width
type writer struct {
	buf []byte
}

func (w *writer) writeUint(value uint64, width int, field string) error {
	if width < 8 && value >= 1<<(8*uint(width)) { //nolint:mnd
		return fmt.Errorf("%w: %s value %d overflows %d bytes", ErrInvalidEncoding, field, value, width)
	}
	start := len(w.buf)
	w.buf = append(w.buf, make([]byte, width)...)
	ctccommon.PutUintN(w.buf[start:], value, width)
	return nil
}

func (w *writer) writeBytes(b []byte) {
	w.buf = append(w.buf, b...)
}
