// Package b3f implements the length-prefixed binary block container used
// for import data (.if) files and artifact (.bf) files: a block count
// header followed by one uint32-length-prefixed block per entry.
package b3f

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTruncated    = errors.New("b3f: truncated container")
	ErrBlockIndex   = errors.New("b3f: block index out of range")
	ErrBlockTooBig  = errors.New("b3f: block exceeds maximum size")
)

// maxBlockSize guards against a corrupt length prefix causing an enormous
// allocation attempt.
const maxBlockSize = 1 << 30

// Encode packs blocks into a single B3F container.
func Encode(blocks ...[]byte) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(blocks)))
	for _, b := range blocks {
		writeUint32(&buf, uint32(len(b)))
		buf.Write(b)
	}
	return buf.Bytes()
}

// Decode unpacks a B3F container into its constituent blocks.
func Decode(data []byte) ([][]byte, error) {
	r := bytes.NewReader(data)

	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("b3f: reading block count: %w", err)
	}

	blocks := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("b3f: reading block %d length: %w", i, err)
		}
		if n > maxBlockSize {
			return nil, fmt.Errorf("%w: block %d is %d bytes", ErrBlockTooBig, i, n)
		}
		block := make([]byte, n)
		if _, err := readFull(r, block); err != nil {
			return nil, fmt.Errorf("b3f: reading block %d payload: %w", i, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// Block returns the i'th block of a container, for callers that only need
// one of several blocks. It decodes the whole container to do so.
func Block(data []byte, i int) ([]byte, error) {
	blocks, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(blocks) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrBlockIndex, i, len(blocks))
	}
	return blocks[i], nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

type byteReader interface {
	Read(p []byte) (int, error)
}

func readUint32(r byteReader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readFull(r byteReader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
	}
	return total, nil
}
