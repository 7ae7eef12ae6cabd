package protocol

import (
	"encoding/binary"
	"fmt"
)

// PutWords packs 16-bit values little-endian, the byte order of STREAM payloads.
func PutWords(words ...uint16) []byte {
	out := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(out[2*i:], w)
	}
	return out
}

// Words unpacks the first n little-endian 16-bit values from b.
func Words(b []byte, n int) ([]uint16, error) {
	if len(b) < 2*n {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrShortPayload, 2*n, len(b))
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return out, nil
}
