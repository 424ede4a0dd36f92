// Package protocol implements the caret-delimited text protocol spoken between
// chat clients and the server.
package protocol

import (
	"bytes"
	"strings"
)

const (
	// Delimiter terminates every frame on the wire.
	Delimiter = '^'

	// Escape replaces a literal Delimiter found inside frame content.
	Escape = '#'

	// MaxFrameLen is the largest frame, in bytes after trimming, the server accepts.
	MaxFrameLen = 100

	// ReadBufferSize is the size of a single read from a stream connection.
	ReadBufferSize = 512

	// DefaultPort is the TCP port the server listens on by default.
	DefaultPort = 26537
)

// Decoder splits a byte stream into frames. It keeps the undelimited tail of
// the previous read so frames split across reads are reassembled.
//
// A Decoder is not safe for concurrent use; each connection owns one.
type Decoder struct {
	// MaxLen drops frames longer than MaxLen bytes. Zero means no limit.
	MaxLen int

	carry      []byte
	discarding bool
	dropped    int
}

// NewDecoder creates a Decoder that drops frames longer than maxLen bytes.
func NewDecoder(maxLen int) *Decoder {
	return &Decoder{MaxLen: maxLen}
}

// Feed consumes raw bytes and returns every complete frame found.
// Bytes after the last delimiter are carried until the next Feed or Flush.
func (d *Decoder) Feed(p []byte) []string {
	var frames []string
	for len(p) > 0 {
		i := bytes.IndexByte(p, Delimiter)
		if i < 0 {
			d.hold(p)
			break
		}
		if d.discarding {
			d.discarding = false
			d.dropped++
		} else {
			d.carry = append(d.carry, p[:i]...)
			if frame, ok := d.clean(d.carry); ok {
				frames = append(frames, frame)
			}
		}
		d.carry = d.carry[:0]
		p = p[i+1:]
	}
	return frames
}

// Flush returns the carried tail as a frame, if it holds one.
func (d *Decoder) Flush() []string {
	if d.discarding {
		d.discarding = false
		d.dropped++
		return nil
	}
	frame, ok := d.clean(d.carry)
	d.carry = d.carry[:0]
	if !ok {
		return nil
	}
	return []string{frame}
}

// Pending reports whether the decoder holds an incomplete frame.
func (d *Decoder) Pending() bool {
	return len(d.carry) > 0 || d.discarding
}

// Dropped returns the number of oversized frames discarded so far.
func (d *Decoder) Dropped() int {
	return d.dropped
}

func (d *Decoder) hold(p []byte) {
	if d.discarding {
		return
	}
	d.carry = append(d.carry, p...)
	if len(d.carry) > ReadBufferSize {
		// Already far beyond any acceptable frame; skip to the next delimiter.
		d.carry = d.carry[:0]
		d.discarding = true
	}
}

func (d *Decoder) clean(raw []byte) (string, bool) {
	frame := strings.TrimSpace(strings.ReplaceAll(string(raw), "\x00", ""))
	if frame == "" {
		return "", false
	}
	if d.MaxLen > 0 && len(frame) > d.MaxLen {
		d.dropped++
		return "", false
	}
	return frame, true
}

// DecodeFrames splits a single raw read buffer into frames. Trailing NUL
// padding and empty frames are dropped; an undelimited tail counts as a frame.
func DecodeFrames(raw []byte) []string {
	var d Decoder
	frames := d.Feed(raw)
	return append(frames, d.Flush()...)
}

// EncodeFrame renders "label: body^" with any Delimiter in label or body
// replaced by Escape. An empty label renders just "body^".
func EncodeFrame(label, body string) []byte {
	var b bytes.Buffer
	b.Grow(len(label) + len(body) + 3)
	if label != "" {
		b.WriteString(escape(label))
		b.WriteString(": ")
	}
	b.WriteString(escape(body))
	b.WriteByte(Delimiter)
	return b.Bytes()
}

// SplitLabel splits a decoded frame into its label and body.
// Frames without a label return an empty label and the whole frame as body.
func SplitLabel(frame string) (label, body string) {
	label, body, ok := strings.Cut(frame, ": ")
	if !ok {
		return "", frame
	}
	return label, body
}

func escape(s string) string {
	return strings.ReplaceAll(s, string(Delimiter), string(Escape))
}
