package sse

import (
	"bytes"
	"io"

	"github.com/bytedance/sonic"
)

// Writer frames values as SSE data events on a downstream io.Writer.
// Each frame is written with a single Write call so that a pipe-backed
// response body flushes whole events.
type Writer struct {
	dest io.Writer
	buf  bytes.Buffer
}

// NewWriter returns a Writer that frames events onto dest.
func NewWriter(dest io.Writer) *Writer {
	return &Writer{dest: dest}
}

// WriteJSON encodes v and writes it as "data: <json>\n\n".
func (w *Writer) WriteJSON(v any) error {
	payload, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return err
	}

	return w.WriteData(payload)
}

// WriteData writes a raw payload as "data: <payload>\n\n".
func (w *Writer) WriteData(payload []byte) error {
	w.buf.Reset()
	w.buf.WriteString(DataPrefix)
	w.buf.Write(payload)
	w.buf.WriteString("\n\n")

	_, err := w.dest.Write(w.buf.Bytes())
	return err
}

// WriteComment writes an SSE comment line, used as a keep-alive.
func (w *Writer) WriteComment(text string) error {
	_, err := io.WriteString(w.dest, ": "+text+"\n\n")
	return err
}
