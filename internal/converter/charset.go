package converter

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type source struct {
	reader io.Reader
	// utf16 is set when the byte order mark already forced a UTF-16 decode,
	// so a matching encoding label in the declaration must not decode again.
	utf16 bool
}

// decodeBOM sniffs a byte order mark and returns a UTF-8 stream.
func decodeBOM(br *bufio.Reader) (*source, error) {
	head, err := br.Peek(3)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}

	switch {
	case len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF:
		_, _ = br.Discard(3)
		return &source{reader: br}, nil
	case len(head) >= 2 && head[0] == 0xFF && head[1] == 0xFE:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		return &source{reader: transform.NewReader(br, dec), utf16: true}, nil
	case len(head) >= 2 && head[0] == 0xFE && head[1] == 0xFF:
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		return &source{reader: transform.NewReader(br, dec), utf16: true}, nil
	}
	return &source{reader: br}, nil
}

// charsetReader is installed as xml.Decoder.CharsetReader for documents that
// declare a non UTF-8 encoding.
func (s *source) charsetReader(label string, input io.Reader) (io.Reader, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	if strings.HasPrefix(l, "utf-16") {
		if s.utf16 {
			return input, nil
		}
		return nil, fmt.Errorf("encoding %q declared without byte order mark", label)
	}
	r, err := charset.NewReaderLabel(l, input)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	return r, nil
}
