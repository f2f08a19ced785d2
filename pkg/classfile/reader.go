package classfile

import "bytes"

// countingReader wraps a byte-slice reader and tracks how many bytes are
// left, so Parse can detect trailing data (§4.1) without a second pass.
type countingReader struct {
	r     *bytes.Reader
	total int
}

func newByteReader(data []byte) *bytes.Reader { return bytes.NewReader(data) }

func (c *countingReader) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *countingReader) remaining() int { return c.r.Len() }
