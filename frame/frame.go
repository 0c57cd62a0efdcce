// Package frame implements the Content-Length framing used on the stdio
// transport of a tool-provider process.
//
// A frame is a block of "Key: Value" header lines terminated by an empty
// line, followed by exactly Content-Length bytes of UTF-8 JSON:
//
//	Content-Length: 42\r\n
//	\r\n
//	{"jsonrpc":"2.0","id":1,"method":"tools/list"}
//
// Header lines end at "\r\n" or a bare "\n". A lone "\r" that is not
// followed by "\n" is kept as a literal byte of the line.
package frame

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Limits applied while decoding.
const (
	DefaultMaxFrameSize = 4 << 20 // 4 MB
	MaxHeaderLines      = 32
	maxHeaderLineLen    = 8 << 10
)

const contentLengthHeader = "content-length"

// Framing failures. They are wrapped in *TransportError by Reader.
var (
	ErrMissingContentLength = errors.New("missing Content-Length header")
	ErrInvalidContentLength = errors.New("invalid Content-Length value")
	ErrHeaderTooLong        = errors.New("header block too long")
	ErrFrameTooLarge        = errors.New("frame exceeds size limit")
)

// TransportError reports a frame that could not be decoded, or a stream that
// failed mid-frame. Framing errors leave the Reader positioned at the next
// line boundary so decoding can resume.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "frame: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Encode returns body wrapped in a single frame.
func Encode(body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(body) + 32)
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	return buf.Bytes()
}

// Writer writes frames to an underlying stream. It is not safe for
// concurrent use; callers serialize writes themselves.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes header and body with a single Write call.
func (w *Writer) WriteFrame(body []byte) error {
	if _, err := w.w.Write(Encode(body)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// WriteJSON marshals v and writes it as one frame.
func (w *Writer) WriteJSON(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "frame: marshal")
	}
	return w.WriteFrame(body)
}

// Reader decodes frames from an underlying stream.
//
// ReadFrame returns io.EOF when the stream ends outside a frame body. A
// stream that ends inside a body, or fails with an I/O error, is reported
// once as a *TransportError; every later call returns io.EOF.
type Reader struct {
	br           *bufio.Reader
	maxFrameSize int
	broken       bool
}

// NewReader returns a Reader on r. maxFrameSize <= 0 selects DefaultMaxFrameSize.
func NewReader(r io.Reader, maxFrameSize int) *Reader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Reader{
		br:           bufio.NewReader(r),
		maxFrameSize: maxFrameSize,
	}
}

// ReadFrame reads the next frame and returns its body.
func (r *Reader) ReadFrame() ([]byte, error) {
	if r.broken {
		return nil, io.EOF
	}
	length, err := r.readHeader()
	if err != nil {
		return nil, err
	}

	if length > r.maxFrameSize {
		if _, err := io.CopyN(io.Discard, r.br, int64(length)); err != nil {
			return nil, r.streamFailure("read body", err)
		}
		return nil, &TransportError{
			Op:  "read body",
			Err: errors.Wrapf(ErrFrameTooLarge, "%d > %d bytes", length, r.maxFrameSize),
		}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return nil, r.streamFailure("read body", err)
	}
	return body, nil
}

// ReadJSON reads the next frame and unmarshals its body into v.
func (r *Reader) ReadJSON(v any) error {
	body, err := r.ReadFrame()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &TransportError{Op: "decode", Err: err}
	}
	return nil
}

// readHeader consumes one header block and returns the declared body length.
// Empty header blocks (stray blank lines between frames) are skipped.
func (r *Reader) readHeader() (int, error) {
	for {
		length := -1
		lines := 0
		var headerErr error
		for {
			line, err := r.readLine()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return 0, io.EOF
				}
				if errors.Is(err, ErrHeaderTooLong) {
					return 0, &TransportError{Op: "read header", Err: err}
				}
				return 0, r.streamFailure("read header", err)
			}
			if len(line) == 0 {
				break
			}
			lines++
			if lines > MaxHeaderLines {
				return 0, &TransportError{Op: "read header", Err: ErrHeaderTooLong}
			}
			n, ok, err := parseContentLength(line)
			switch {
			case err != nil:
				headerErr = err
			case ok:
				length = n
			}
		}
		if lines == 0 {
			continue
		}
		if headerErr != nil {
			return 0, &TransportError{Op: "read header", Err: headerErr}
		}
		if length < 0 {
			return 0, &TransportError{Op: "read header", Err: ErrMissingContentLength}
		}
		return length, nil
	}
}

// readLine returns one header line without its terminator. Lines longer than
// maxHeaderLineLen are consumed in full and rejected with ErrHeaderTooLong.
func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	overflow := false
	for {
		chunk, err := r.br.ReadSlice('\n')
		if !overflow {
			if len(line)+len(chunk) > maxHeaderLineLen+2 {
				overflow = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch {
		case err == nil:
			if overflow {
				return nil, ErrHeaderTooLong
			}
			line = line[:len(line)-1]
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			// A partial line at end of stream is not a header.
			return nil, err
		}
	}
}

func (r *Reader) streamFailure(op string, err error) error {
	r.broken = true
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &TransportError{Op: op, Err: err}
}

// parseContentLength reports whether line is a Content-Length header and, if
// so, its value. The field name is matched case-insensitively.
func parseContentLength(line []byte) (int, bool, error) {
	name, value, found := strings.Cut(string(line), ":")
	if !found || !strings.EqualFold(strings.TrimSpace(name), contentLengthHeader) {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0, true, errors.Wrapf(ErrInvalidContentLength, "%q", strings.TrimSpace(value))
	}
	return n, true, nil
}
