package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
)

func FuzzReadFrame(f *testing.F) {
	f.Add([]byte("Content-Length: 2\r\n\r\n{}"))
	f.Add([]byte("Content-Length: 99\r\n\r\n{}"))
	f.Add([]byte("content-length:x\r\n\r\n"))
	f.Add([]byte("\r\r\r\n\n\n"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		r := NewReader(bytes.NewReader(data), 1024)
		// Every call consumes at least one byte or ends the stream.
		for i := 0; i <= len(data)+1; i++ {
			if _, err := r.ReadFrame(); errors.Is(err, io.EOF) {
				return
			}
		}
		t.Fatalf("reader did not reach end of stream for %q", data)
	})
}

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte(`{"jsonrpc":"2.0","id":1}`))
	f.Add([]byte("line\r\nbreaks\rinside"))

	f.Fuzz(func(t *testing.T, body []byte) {
		got, err := NewReader(bytes.NewReader(Encode(body)), len(body)+1).ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(got, body) {
			t.Fatalf("body = %q, want %q", got, body)
		}
	})
}
