package firmware

import (
	"errors"
	"fmt"
)

const (
	// BlockSize is the number of image bytes carried by one FIRMWARE_RESPONSE.
	BlockSize = 16
	// PageSize is the flash page of the target microcontroller (64 words).
	PageSize = 128
	// UnknownType is what a node with blank EEPROM reports as its firmware type.
	UnknownType uint16 = 0xFFFF
	// FillByte is the value of erased flash.
	FillByte byte = 0xFF
)

var ErrBlockOutOfRange = errors.New("firmware: block index out of range")

// Image is a padded firmware image ready for over-the-air transfer.
// Data is immutable once built; len(Data) == BlockCount*BlockSize.
type Image struct {
	Type       uint16
	Version    uint16
	Filename   string
	BlockCount uint32
	CRC        uint16
	Data       []byte
}

// NewImage pads raw to a page boundary and computes block count and CRC.
func NewImage(typ, version uint16, raw []byte) *Image {
	data := padTo(raw, PageSize)
	return &Image{
		Type:       typ,
		Version:    version,
		BlockCount: uint32(len(data) / BlockSize),
		CRC:        CRC16(data),
		Data:       data,
	}
}

// Block returns the 16 bytes of block i.
func (img *Image) Block(i uint16) ([]byte, error) {
	if uint32(i) >= img.BlockCount {
		return nil, fmt.Errorf("%w: %d >= %d", ErrBlockOutOfRange, i, img.BlockCount)
	}
	off := int(i) * BlockSize
	if off+BlockSize > len(img.Data) {
		return nil, fmt.Errorf("%w: %d past %d bytes", ErrBlockOutOfRange, i, len(img.Data))
	}
	return img.Data[off : off+BlockSize], nil
}

func (img *Image) String() string {
	return fmt.Sprintf("type=%d version=%d blocks=%d crc=0x%04X", img.Type, img.Version, img.BlockCount, img.CRC)
}

func padTo(b []byte, boundary int) []byte {
	out := make([]byte, len(b), len(b)+boundary)
	copy(out, b)
	for len(out)%boundary != 0 {
		out = append(out, FillByte)
	}
	return out
}
