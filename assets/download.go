package assets

import (
	"context"
	"fmt"
	"io"

	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/storage"
)

// Download streams a stored asset's bytes in chunk order, holding one
// chunk in memory at a time. It verifies sequence contiguity as it goes;
// a missing chunk surfaces as ErrTruncated from Read rather than a short
// body.
type Download struct {
	Asset models.Asset

	// Request-scoped: a Download lives exactly as long as the response
	// write it feeds.
	ctx    context.Context
	cursor storage.ChunkCursor
	buf    []byte
	next   int
	err    error
}

func (d *Download) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	for len(d.buf) == 0 {
		if !d.cursor.Next(d.ctx) {
			if err := d.cursor.Err(); err != nil {
				d.err = err
			} else if d.next != d.Asset.ChunkCount {
				d.err = fmt.Errorf("%w: chunk %d missing", ErrTruncated, d.next)
			} else {
				d.err = io.EOF
			}
			return 0, d.err
		}
		chunk := d.cursor.Chunk()
		if chunk.Seq != d.next {
			d.err = fmt.Errorf("%w: chunk %d missing", ErrTruncated, d.next)
			return 0, d.err
		}
		d.next++
		d.buf = chunk.Data
	}
	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	return n, nil
}

func (d *Download) Close() error {
	return d.cursor.Close(d.ctx)
}
