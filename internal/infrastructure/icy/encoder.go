// ABOUTME: ICY metadata encoding for Shoutcast/Icecast compatible listeners
// ABOUTME: Builds padded metadata blocks and interleaves them into an audio stream
package icy

import (
	"bytes"
	"io"
	"strings"
)

// BuildBlock encodes text as ICY metadata block with 16-byte padding.
// Returns length byte (count of 16-byte chunks) followed by padded payload.
// Max size: 255 * 16 = 4080 bytes.
func BuildBlock(text string) []byte {
	if text == "" {
		return []byte{0x00}
	}

	payload := []byte(text)
	if len(payload) > 255*16 {
		payload = payload[:255*16]
	}

	blocks := (len(payload) + 15) / 16
	pad := blocks*16 - len(payload)

	var buf bytes.Buffer
	buf.Grow(1 + blocks*16)
	buf.WriteByte(byte(blocks))
	buf.Write(payload)
	if pad > 0 {
		buf.Write(make([]byte, pad))
	}

	return buf.Bytes()
}

// StreamTitle formats title as an ICY StreamTitle field. Single quotes would
// terminate the value early, so they are dropped.
func StreamTitle(title string) string {
	title = strings.ReplaceAll(title, "'", "")
	title = strings.Join(strings.Fields(title), " ")
	return "StreamTitle='" + title + "';"
}

// Writer inserts a metadata block after every metaInt audio bytes.
type Writer struct {
	w        io.Writer
	metaInt  int
	until    int
	title    func() string
	lastSent string
}

// NewWriter wraps w. title is consulted at every metadata point; a block is
// only sent with content when the title changed since the last one.
func NewWriter(w io.Writer, metaInt int, title func() string) *Writer {
	return &Writer{w: w, metaInt: metaInt, until: metaInt, title: title}
}

func (iw *Writer) Write(p []byte) (int, error) {
	if iw.metaInt <= 0 {
		return iw.w.Write(p)
	}

	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > iw.until {
			n = iw.until
		}

		m, err := iw.w.Write(p[:n])
		written += m
		iw.until -= m
		p = p[m:]
		if err != nil {
			return written, err
		}

		if iw.until == 0 {
			if _, err := iw.w.Write(iw.nextBlock()); err != nil {
				return written, err
			}
			iw.until = iw.metaInt
		}
	}
	return written, nil
}

func (iw *Writer) nextBlock() []byte {
	meta := StreamTitle(iw.title())
	if meta == iw.lastSent {
		return []byte{0x00}
	}
	iw.lastSent = meta
	return BuildBlock(meta)
}
