package firmware

const (
	crcPolynomial = 0xA001
	crcSeed       = 0xFFFF
)

// UpdateCRC16 folds one byte into a running reflected CRC-16 (poly 0xA001).
func UpdateCRC16(crc uint16, b byte) uint16 {
	crc ^= uint16(b)
	for i := 0; i < 8; i++ {
		if crc&0x0001 != 0 {
			crc = (crc >> 1) ^ crcPolynomial
		} else {
			crc >>= 1
		}
	}
	return crc
}

// CRC16 computes the image checksum the node bootloader verifies, seeded at 0xFFFF.
func CRC16(data []byte) uint16 {
	var crc uint16 = crcSeed
	for _, b := range data {
		crc = UpdateCRC16(crc, b)
	}
	return crc
}
