package protocol

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	fieldSep  = ";"
	lineEnd   = '\n'
	numFields = 6

	// DefaultMaxLine bounds the pending buffer; the longest legal frame is far shorter.
	DefaultMaxLine = 1024
)

// Encode renders a frame as a wire line terminated by '\n'.
// Text payloads are written as-is: the wire format has no escaping for ';' or '\n'.
func Encode(f Frame) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(f.Sender)))
	b.WriteString(fieldSep)
	b.WriteString(strconv.Itoa(int(f.SensorID)))
	b.WriteString(fieldSep)
	b.WriteString(strconv.Itoa(int(f.Command)))
	b.WriteString(fieldSep)
	if f.Ack {
		b.WriteString("1")
	} else {
		b.WriteString("0")
	}
	b.WriteString(fieldSep)
	b.WriteString(strconv.Itoa(int(f.SubType)))
	b.WriteString(fieldSep)
	if f.Command == CommandStream {
		b.WriteString(hex.EncodeToString(f.Data))
	} else {
		b.WriteString(f.Payload)
	}
	b.WriteByte(lineEnd)
	return b.String()
}

// Decode parses a single line (with or without its terminator) into a Frame.
func Decode(line string) (Frame, error) {
	line = strings.TrimSpace(line)
	fields := strings.SplitN(line, fieldSep, numFields)
	if len(fields) != numFields {
		return Frame{}, &DecodeError{Line: line, Err: ErrFieldCount}
	}

	var nums [5]uint64
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseUint(strings.TrimSpace(fields[i]), 10, 8)
		if err != nil {
			return Frame{}, &DecodeError{Line: line, Err: fmt.Errorf("%w: field %d %q", ErrFieldRange, i+1, fields[i])}
		}
		nums[i] = v
	}

	cmd, err := ParseCommand(nums[2])
	if err != nil {
		return Frame{}, &DecodeError{Line: line, Err: err}
	}
	if nums[3] > 1 {
		return Frame{}, &DecodeError{Line: line, Err: fmt.Errorf("%w: ack %d", ErrFieldRange, nums[3])}
	}

	f := Frame{
		Sender:   uint8(nums[0]),
		SensorID: uint8(nums[1]),
		Command:  cmd,
		Ack:      nums[3] == 1,
		SubType:  uint8(nums[4]),
	}
	payload := strings.TrimSpace(fields[5])
	if cmd == CommandStream {
		data, err := hex.DecodeString(payload)
		if err != nil {
			return Frame{}, &DecodeError{Line: line, Err: fmt.Errorf("%w: %v", ErrBadHex, err)}
		}
		f.Data = data
	} else {
		f.Payload = payload
	}
	return f, nil
}

// Result is one line produced by a Decoder: either a Frame or the reason it was dropped.
type Result struct {
	Frame Frame
	Err   error
}

// Decoder accumulates byte chunks from a stream and splits them into frames.
// It is not safe for concurrent use; each connection owns its own Decoder.
type Decoder struct {
	MaxLine int

	pending []byte
	discard bool
}

// Accumulate appends chunk to the pending buffer and returns every complete line, in order.
// Malformed lines yield a Result with Err set; decoding resumes at the next '\n'.
func (d *Decoder) Accumulate(chunk []byte) []Result {
	var out []Result
	limit := d.MaxLine
	if limit <= 0 {
		limit = DefaultMaxLine
	}
	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, lineEnd)
		if idx < 0 {
			if !d.discard {
				d.pending = append(d.pending, chunk...)
				if len(d.pending) > limit {
					out = append(out, Result{Err: &DecodeError{Line: prefix(d.pending, 32), Err: ErrLineTooLong}})
					d.pending = d.pending[:0]
					d.discard = true
				}
			}
			break
		}

		if d.discard {
			d.discard = false
		} else {
			d.pending = append(d.pending, chunk[:idx]...)
			if r, ok := d.line(); ok {
				out = append(out, r)
			}
		}
		d.pending = d.pending[:0]
		chunk = chunk[idx+1:]
	}
	return out
}

func (d *Decoder) line() (Result, bool) {
	text := strings.TrimSpace(string(d.pending))
	if text == "" {
		return Result{}, false
	}
	f, err := Decode(text)
	return Result{Frame: f, Err: err}, true
}

func prefix(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// Buffered returns the number of bytes waiting for a line terminator.
func (d *Decoder) Buffered() int { return len(d.pending) }

// Reset drops any partial line.
func (d *Decoder) Reset() {
	d.pending = d.pending[:0]
	d.discard = false
}
