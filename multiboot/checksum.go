package multiboot

// Checksum is the 16-bit CRC the console keeps over the payload.
// The zero value is not ready for use; call Reset or NewChecksum.
type Checksum struct {
	crc uint16
}

func NewChecksum() *Checksum {
	c := &Checksum{}
	c.Reset()
	return c
}

func (c *Checksum) Reset() {
	c.crc = checksumInit
}

// Absorb feeds one word, least significant bit first.
func (c *Checksum) Absorb(word uint32) {
	crc := c.crc
	for i := 0; i < 32; i++ {
		bit := (uint32(crc) ^ word) & 1
		crc >>= 1
		if bit != 0 {
			crc ^= checksumPoly
		}
		word >>= 1
	}
	c.crc = crc
}

func (c *Checksum) Value() uint16 {
	return c.crc
}
