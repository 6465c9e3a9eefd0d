package binary

import "io"

// Writer places encoded blocks in an io.WriterAt.
type Writer struct {
	dst io.WriterAt
	cfg Config
	pos int64
}

func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{dst: w, cfg: cfg}
}

// At returns a new Writer positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{dst: w.dst, cfg: w.cfg, pos: offset}
}

// WriteBytes writes b at the current position and moves past it.
func (w *Writer) WriteBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n, err := w.dst.WriteAt(b, w.pos)
	w.pos += int64(n)
	return err
}

func (w *Writer) Config() Config { return w.cfg }
