// Package multiboot sends a program image to a GBA-family console waiting in
// its BIOS multiboot loader, acting as the master end of the link cable.
//
// Every protocol step is a single 32-bit exchange: the master clocks one word
// out and the console's preloaded reply word back in. A transfer runs through
// the phases Handshaking, SendingHeader, ExchangingKey, SendingPayload and
// Finalizing; any phase may fail, after which the session is finished and a
// new one must be started from the beginning.
package multiboot

const (
	// HeaderSize is the cartridge header sent in the clear before the cipher starts.
	HeaderSize = 0xC0
	// MaxImageSize is the size of the console's external work RAM.
	MaxImageSize = 0x40000

	headerHalfwords = HeaderSize / 2

	// hardware alignment expected by the BIOS loader:
	hardwareAlign   = 0x10
	hardwareMinSize = 0x1C0
)

// commands sent by the master, in the low halfword:
const (
	cmdSync       uint32 = 0x6202
	cmdRecognized uint32 = 0x6102
	cmdHeaderDone uint32 = 0x6200
	cmdPalette    uint32 = 0x63D1
	cmdHandshake  uint32 = 0x6400
	cmdFinalPoll  uint32 = 0x0065
	cmdFinalCRC   uint32 = 0x0066
)

// replies from the console, in the high halfword:
const (
	clientBit       uint32 = 0x02
	replySync       uint32 = 0x7200 | clientBit
	replyKeyTag     uint32 = 0x73
	replyFinalReady uint32 = 0x0075
)

// cipher and checksum constants; both ends must agree on every one of them.
const (
	keystreamMult uint32 = 0x6F646573 // "sedo"
	keystreamInc  uint32 = 1
	cipherTweak   uint32 = 0x43202F2F // "// C"
	offsetBase    uint32 = 0xFE000000

	checksumInit uint16 = 0xC387
	checksumPoly uint16 = 0xC37B

	paletteByte = uint32(cmdPalette & 0xFF)
	seedBase    = 0xFFFF0000 | paletteByte
	// the length word counts payload words beyond this many image bytes:
	lengthBias = 0x190
)

// SeedFromKeyReply derives the session seed from the console's key-exchange reply byte.
func SeedFromKeyReply(cc byte) uint32 {
	return seedBase | uint32(cc)<<8
}

// HandshakeByte is the byte the master confirms the key exchange with.
func HandshakeByte(cc byte) byte {
	return cc + 0x0F
}

// LengthWord encodes the padded image size for the console.
// Images shorter than the bias wrap around; the console applies the same
// two's complement arithmetic when it decodes the length.
func LengthWord(paddedSize int) uint32 {
	return uint32(int32(paddedSize-lengthBias) / 4)
}

// ImageEnd decodes a length word back into the image size.
func ImageEnd(length uint32) int {
	return lengthBias + 4*int(int32(length))
}

// FinalWord is the last word absorbed into the checksum before finalization.
func FinalWord(hh, rr byte) uint32 {
	return 0xFFFF0000 | uint32(rr)<<8 | uint32(hh)
}
