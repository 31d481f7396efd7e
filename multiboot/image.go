package multiboot

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrEmptyImage    = errors.New("image is empty")
	ErrImageTooShort = fmt.Errorf("image is shorter than the %d byte header", HeaderSize)
	ErrImageTooLarge = fmt.Errorf("image is larger than %d bytes", MaxImageSize)
)

// ValidateImage checks the size invariants of a raw image.
func ValidateImage(raw []byte) error {
	switch {
	case len(raw) == 0:
		return ErrEmptyImage
	case len(raw) < HeaderSize:
		return fmt.Errorf("%w (%d bytes)", ErrImageTooShort, len(raw))
	case len(raw) > MaxImageSize:
		return fmt.Errorf("%w (%d bytes)", ErrImageTooLarge, len(raw))
	}
	return nil
}

// PadImage validates raw and returns a zero-filled copy rounded up to a
// multiple of align and at least minSize bytes long.
// Padding an already padded image returns an identical copy.
func PadImage(raw []byte, align, minSize int) ([]byte, error) {
	if err := ValidateImage(raw); err != nil {
		return nil, err
	}
	if align < 4 || align&(align-1) != 0 {
		return nil, fmt.Errorf("alignment %d is not a power of two >= 4", align)
	}

	size := (len(raw) + align - 1) &^ (align - 1)
	if size < minSize {
		size = minSize
	}
	if size > MaxImageSize {
		return nil, fmt.Errorf("%w after padding (%d bytes)", ErrImageTooLarge, size)
	}

	padded := make([]byte, size)
	copy(padded, raw)
	return padded, nil
}

func headerHalfword(image []byte, i int) uint32 {
	return uint32(binary.LittleEndian.Uint16(image[i*2:]))
}

func payloadWord(image []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(image[offset:])
}
