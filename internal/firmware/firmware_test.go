package firmware

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// hexRecord renders one Intel-HEX record with a valid checksum.
func hexRecord(offset uint16, kind byte, data []byte) string {
	raw := []byte{byte(len(data)), byte(offset >> 8), byte(offset), kind}
	raw = append(raw, data...)
	var sum byte
	for _, b := range raw {
		sum += b
	}
	raw = append(raw, -sum)
	return ":" + strings.ToUpper(fmt.Sprintf("%x", raw))
}

// hexImage splits data into 16 byte records starting at base.
func hexImage(base uint16, data []byte) string {
	var lines []string
	for i := 0; i < len(data); i += 16 {
		j := i + 16
		if j > len(data) {
			j = len(data)
		}
		lines = append(lines, hexRecord(base+uint16(i), recordData, data[i:j]))
	}
	lines = append(lines, ":00000001FF")
	return strings.Join(lines, "\n") + "\n"
}

func seq(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

func TestCRC16(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint16
	}{
		{"check string", []byte("123456789"), 0x4B37},
		{"zero page", make([]byte, 128), 0xFBFE},
		{"erased page", bytes.Repeat([]byte{0xFF}, 128), 0x8FFE},
		{"empty", nil, 0xFFFF},
		{"order a", []byte{1, 2}, 0xE181},
		{"order b", []byte{2, 1}, 0x10C1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CRC16(tc.in); got != tc.want {
				t.Fatalf("CRC16 = 0x%04X, want 0x%04X", got, tc.want)
			}
		})
	}
}

func TestLoadPadsToPage(t *testing.T) {
	img, err := Load(strings.NewReader(hexImage(0, seq(130))), 3, 7, Options{VerifyChecksum: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(img.Data) != 256 {
		t.Fatalf("expected 256 bytes, got %d", len(img.Data))
	}
	if img.BlockCount != 16 {
		t.Fatalf("expected 16 blocks, got %d", img.BlockCount)
	}
	if !bytes.Equal(img.Data[:130], seq(130)) {
		t.Fatalf("image data altered")
	}
	for i := 130; i < 256; i++ {
		if img.Data[i] != FillByte {
			t.Fatalf("byte %d = 0x%02X, want fill", i, img.Data[i])
		}
	}
	if img.CRC != 0x3EB1 {
		t.Fatalf("CRC = 0x%04X, want 0x3EB1", img.CRC)
	}
	if img.Type != 3 || img.Version != 7 {
		t.Fatalf("unexpected type/version %d/%d", img.Type, img.Version)
	}
}

func TestLoadAlignedImageIsNotPadded(t *testing.T) {
	img, err := Load(strings.NewReader(hexImage(0x80, seq(128))), 1, 1, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(img.Data) != 128 || img.BlockCount != 8 {
		t.Fatalf("expected 128 bytes / 8 blocks, got %d / %d", len(img.Data), img.BlockCount)
	}
}

func TestParseHexFillsGaps(t *testing.T) {
	text := hexRecord(0, recordData, []byte{1, 2}) + "\n" +
		hexRecord(4, recordData, []byte{3}) + "\n"
	raw, err := ParseHex(strings.NewReader(text), Options{})
	if err != nil {
		t.Fatalf("ParseHex failed: %v", err)
	}
	if !bytes.Equal(raw, []byte{1, 2, 0xFF, 0xFF, 3}) {
		t.Fatalf("raw = %x", raw)
	}
}

func TestParseHexSkipsLeadingNoise(t *testing.T) {
	text := "\x00\x13 " + hexRecord(0, recordData, []byte{0xAA}) + "\n" +
		":020000021000EC\n" +
		":00000001FF\n"
	raw, err := ParseHex(strings.NewReader(text), Options{VerifyChecksum: true})
	if err != nil {
		t.Fatalf("ParseHex failed: %v", err)
	}
	if !bytes.Equal(raw, []byte{0xAA}) {
		t.Fatalf("raw = %x", raw)
	}
}

func TestParseHexStopsAtEOF(t *testing.T) {
	text := hexImage(0, []byte{1, 2, 3}) + "garbage after eof\n" + hexRecord(0, recordData, []byte{9}) + "\n"
	raw, err := ParseHex(strings.NewReader(text), Options{VerifyChecksum: true})
	if err != nil {
		t.Fatalf("ParseHex failed: %v", err)
	}
	if !bytes.Equal(raw, []byte{1, 2, 3}) {
		t.Fatalf("raw = %x", raw)
	}
}

func TestParseHexErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
		opts Options
		want error
	}{
		{"unaligned start", hexRecord(0x10, recordData, []byte{1}), Options{}, ErrUnalignedStart},
		{"non monotonic", hexRecord(0, recordData, []byte{1, 2, 3}) + "\n" + hexRecord(1, recordData, []byte{4}), Options{}, ErrNonMonotonic},
		{"empty", ":00000001FF\n", Options{}, ErrEmptyImage},
		{"bad hex", ":0G000000\n", Options{}, ErrMalformed},
		{"short record", ":0100\n", Options{}, ErrMalformed},
		{"length mismatch", ":0200000001FD\n", Options{}, ErrMalformed},
		{"no marker", "0100000001FE\n", Options{}, ErrMalformed},
		{"checksum", ":0100000001FF\n", Options{VerifyChecksum: true}, ErrChecksum},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHex(strings.NewReader(tc.text), tc.opts)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ParseHex error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestChecksumIgnoredByDefault(t *testing.T) {
	if _, err := ParseHex(strings.NewReader(":0100000001FF\n"), Options{}); err != nil {
		t.Fatalf("ParseHex failed: %v", err)
	}
}

func TestBlock(t *testing.T) {
	img := NewImage(1, 1, seq(64))
	if img.BlockCount != 8 {
		t.Fatalf("expected 8 blocks after padding, got %d", img.BlockCount)
	}
	b, err := img.Block(2)
	if err != nil {
		t.Fatalf("Block failed: %v", err)
	}
	if !bytes.Equal(b, seq(64)[32:48]) {
		t.Fatalf("block 2 = %x", b)
	}
	if _, err := img.Block(8); !errors.Is(err, ErrBlockOutOfRange) {
		t.Fatalf("expected ErrBlockOutOfRange, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blink.hex")
	if err := os.WriteFile(path, []byte(hexImage(0, seq(20))), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	img, err := LoadFile(path, 2, 5, Options{VerifyChecksum: true})
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if img.Filename != "blink.hex" {
		t.Fatalf("filename = %q", img.Filename)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.hex"), 1, 1, Options{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
