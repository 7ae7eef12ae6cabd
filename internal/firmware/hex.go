package firmware

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	recordMark = ':'
	// reclen(1) + offset(2) + rectype(1) + checksum(1)
	recordOverhead = 5
	recordData     = 0x00
	recordEOF      = 0x01
)

var (
	ErrUnalignedStart = errors.New("firmware: first data record not on a 128 byte boundary")
	ErrNonMonotonic   = errors.New("firmware: record offset lower than image end")
	ErrEmptyImage     = errors.New("firmware: no data records")
	ErrChecksum       = errors.New("firmware: record checksum mismatch")
	ErrMalformed      = errors.New("firmware: malformed record")
)

// HexParseError reports the line of an Intel-HEX image that could not be loaded.
type HexParseError struct {
	Line int
	Err  error
}

func (e *HexParseError) Error() string { return fmt.Sprintf("hex line %d: %v", e.Line, e.Err) }
func (e *HexParseError) Unwrap() error { return e.Err }

// Options tunes hex parsing.
type Options struct {
	// VerifyChecksum rejects records whose trailing checksum does not match.
	VerifyChecksum bool
}

// LoadFile reads an Intel-HEX file and builds the image for (typ, version).
func LoadFile(path string, typ, version uint16, opts Options) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open firmware: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := Load(f, typ, version, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	img.Filename = filepath.Base(path)
	return img, nil
}

// Load parses Intel-HEX text and builds the padded image.
func Load(r io.Reader, typ, version uint16, opts Options) (*Image, error) {
	raw, err := ParseHex(r, opts)
	if err != nil {
		return nil, err
	}
	return NewImage(typ, version, raw), nil
}

// ParseHex flattens the data records of an Intel-HEX image into contiguous bytes starting at the
// first record's offset. Gaps are filled with 0xFF. Only data records are consumed; extended
// address records are ignored, so images above 64 KiB are not supported. Input after the EOF
// record is not read.
func ParseHex(r io.Reader, opts Options) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	var (
		out     []byte
		end     int
		started bool
		lineNum int
	)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, recordMark)
		if idx < 0 {
			return nil, &HexParseError{Line: lineNum, Err: fmt.Errorf("%w: missing ':'", ErrMalformed)}
		}
		rec, err := parseRecord(line[idx+1:], opts)
		if err != nil {
			return nil, &HexParseError{Line: lineNum, Err: err}
		}
		if rec.kind == recordEOF {
			break
		}
		if rec.kind != recordData {
			continue
		}

		offset := int(rec.offset)
		if !started {
			if offset%PageSize != 0 {
				return nil, &HexParseError{Line: lineNum, Err: fmt.Errorf("%w: offset 0x%04X", ErrUnalignedStart, offset)}
			}
			started = true
			end = offset
		}
		if offset < end {
			return nil, &HexParseError{Line: lineNum, Err: fmt.Errorf("%w: offset 0x%04X < 0x%04X", ErrNonMonotonic, offset, end)}
		}
		for end < offset {
			out = append(out, FillByte)
			end++
		}
		out = append(out, rec.data...)
		end += len(rec.data)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hex: %w", err)
	}
	if !started {
		return nil, ErrEmptyImage
	}
	return out, nil
}

type record struct {
	offset uint16
	kind   byte
	data   []byte
}

// parseRecord decodes the hex text following ':'.
func parseRecord(text string, opts Options) (record, error) {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < recordOverhead {
		return record{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(raw))
	}
	n := int(raw[0])
	if len(raw) != recordOverhead+n {
		return record{}, fmt.Errorf("%w: reclen %d but %d data bytes", ErrMalformed, n, len(raw)-recordOverhead)
	}
	if opts.VerifyChecksum {
		var sum byte
		for _, b := range raw {
			sum += b
		}
		if sum != 0 {
			return record{}, fmt.Errorf("%w: got 0x%02X", ErrChecksum, raw[len(raw)-1])
		}
	}
	return record{
		offset: uint16(raw[1])<<8 | uint16(raw[2]),
		kind:   raw[3],
		data:   raw[4 : 4+n],
	}, nil
}
