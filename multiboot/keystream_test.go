package multiboot

import (
	"math/rand"
	"testing"
)

func TestKeystream_Sequence(t *testing.T) {
	tests := []struct {
		name string
		seed uint32
		want []uint32
	}{
		{"zero", 0, []uint32{0x00000001, 0x6F646574, 0x9370571D}},
		{"session seed", SeedFromKeyReply(0x5A), []uint32{0xD72E40E4, 0x1E711A6D, 0xE1CFDFF8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := NewKeystream(tt.seed)
			for i, want := range tt.want {
				if got := k.Next(); got != want {
					t.Errorf("Next() #%d = %08x, want %08x", i, got, want)
				}
			}
		})
	}
}

func TestKeystream_Replayable(t *testing.T) {
	a := NewKeystream(0xFFFF12D1)
	first := make([]uint32, 1000)
	for i := range first {
		first[i] = a.Next()
	}

	a.Seed(0xFFFF12D1)
	for i := range first {
		if got := a.Next(); got != first[i] {
			t.Fatalf("reseeded sequence diverged at %d: %08x != %08x", i, got, first[i])
		}
	}
}

func TestKeystream_NoRepeatWithinMaxPayload(t *testing.T) {
	seeds := []uint32{0, 0xFFFFFFFF}
	for cc := 0; cc < 256; cc += 17 {
		seeds = append(seeds, SeedFromKeyReply(byte(cc)))
	}

	const words = MaxImageSize / 4
	for _, seed := range seeds {
		k := NewKeystream(seed)
		seen := make(map[uint32]struct{}, words)
		for i := 0; i < words; i++ {
			w := k.Next()
			if _, dup := seen[w]; dup {
				t.Fatalf("seed %08x: keystream repeated %08x after %d words", seed, w, i)
			}
			seen[w] = struct{}{}
		}
	}
}

func TestCipher_RoundTrip(t *testing.T) {
	edges := []uint32{0, 1, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF, 0x43202F2F, 0xFE000000}
	for _, p := range edges {
		for _, k := range edges {
			for _, off := range []uint32{HeaderSize, 0x1000, MaxImageSize - 4} {
				if got := Decrypt(Encrypt(p, k, off), k, off); got != p {
					t.Fatalf("round trip p=%08x k=%08x off=%x: got %08x", p, k, off, got)
				}
			}
		}
	}

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100000; i++ {
		p, k, off := r.Uint32(), r.Uint32(), r.Uint32()&^3
		if got := Decrypt(Encrypt(p, k, off), k, off); got != p {
			t.Fatalf("round trip p=%08x k=%08x off=%x: got %08x", p, k, off, got)
		}
	}
}

func TestCipher_DependsOnOffset(t *testing.T) {
	if Encrypt(0x12345678, 0xCAFEBABE, 0xC0) == Encrypt(0x12345678, 0xCAFEBABE, 0xC4) {
		t.Error("identical words at different offsets encrypted identically")
	}
}

func TestProtocolDerivations(t *testing.T) {
	if got := SeedFromKeyReply(0x5A); got != 0xFFFF5AD1 {
		t.Errorf("SeedFromKeyReply = %08x", got)
	}
	if got := HandshakeByte(0xF8); got != 0x07 {
		t.Errorf("HandshakeByte wraps: got %02x", got)
	}
	if got := FinalWord(0x69, 0x3C); got != 0xFFFF3C69 {
		t.Errorf("FinalWord = %08x", got)
	}

	for _, size := range []int{HeaderSize, 0x190, 0x1C0, 0x2000, MaxImageSize} {
		if got := ImageEnd(LengthWord(size)); got != size {
			t.Errorf("ImageEnd(LengthWord(%#x)) = %#x", size, got)
		}
	}
	if got := LengthWord(0x1C0); got != 0x0C {
		t.Errorf("LengthWord(0x1C0) = %#x, want 0xc", got)
	}
}
