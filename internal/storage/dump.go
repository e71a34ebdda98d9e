package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// dumpMagic opens every dump written by the memory and sqlite engines.
var dumpMagic = []byte("TSKV\x01")

// ErrBadBackup is returned by Restore for input that is not a key-value dump.
var ErrBadBackup = errors.New("storage: not a key-value dump")

// dumpWriter writes the portable dump format:
// magic, then [uvarint len][key][uvarint len][value] per entry.
type dumpWriter struct {
	bw      *bufio.Writer
	written uint64
	lenBuf  [binary.MaxVarintLen64]byte
}

func newDumpWriter(w io.Writer) (*dumpWriter, error) {
	d := &dumpWriter{bw: bufio.NewWriter(w)}
	return d, d.write(dumpMagic)
}

func (d *dumpWriter) write(p []byte) error {
	n, err := d.bw.Write(p)
	d.written += uint64(n)
	return err
}

func (d *dumpWriter) chunk(p []byte) error {
	l := binary.PutUvarint(d.lenBuf[:], uint64(len(p)))
	if err := d.write(d.lenBuf[:l]); err != nil {
		return err
	}
	return d.write(p)
}

// Entry appends one key-value pair.
func (d *dumpWriter) Entry(key, value []byte) error {
	if err := d.chunk(key); err != nil {
		return err
	}
	return d.chunk(value)
}

// Close flushes buffered output and returns the total bytes written.
func (d *dumpWriter) Close() (uint64, error) {
	err := d.bw.Flush()
	return d.written, err
}

// readDump decodes a dump and calls fn for every entry in order.
func readDump(ctx context.Context, r io.Reader, fn func(key, value []byte) error) error {
	br := bufio.NewReader(r)

	magic := make([]byte, len(dumpMagic))
	if _, err := io.ReadFull(br, magic); err != nil || !bytes.Equal(magic, dumpMagic) {
		return ErrBadBackup
	}

	readChunk := func() ([]byte, error) {
		l, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		p := make([]byte, l)
		if _, err := io.ReadFull(br, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := readChunk()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadBackup, err)
		}
		value, err := readChunk()
		if err != nil {
			return fmt.Errorf("%w: truncated value for %q", ErrBadBackup, key)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
}
