package util

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

const (
	GCS_POLY = crc32.Castagnoli
)

var castagnoli = crc32.MakeTable(GCS_POLY)

// From
// https://stackoverflow.com/questions/64415363/calculate-crc32-checksum-from-file-reader-with-go-and-cloud-storage

func NewCRCwriter(w io.Writer) *CRCwriter {
	return &CRCwriter{
		h: crc32.New(castagnoli),
		w: w,
	}
}

type CRCwriter struct {
	h hash.Hash32
	w io.Writer
}

func (c *CRCwriter) Write(p []byte) (n int, err error) {
	n, err = c.w.Write(p)  // with each write ...
	c.h.Write(p[:n])       // ... update the hash
	return
}

func (c *CRCwriter) Sum() uint32 {
	return c.h.Sum32() // final hash
}

// Checksum is the CRC32C of data rendered as 8 hex digits, the form used
// for precondition tokens by the local backend.
func Checksum(data []byte) string {
	return fmt.Sprintf("%08x", crc32.Checksum(data, castagnoli))
}
