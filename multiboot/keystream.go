package multiboot

// Keystream is the linear-congruential generator keying the payload cipher.
// Given the same seed it always yields the same sequence.
type Keystream struct {
	state uint32
}

func NewKeystream(seed uint32) *Keystream {
	return &Keystream{state: seed}
}

func (k *Keystream) Seed(v uint32) {
	k.state = v
}

// Next advances the generator and returns the new state.
// uint32 arithmetic wraps modulo 2^32, which is exactly the recurrence.
func (k *Keystream) Next() uint32 {
	k.state = k.state*keystreamMult + keystreamInc
	return k.state
}

// Encrypt combines a plaintext payload word with its keystream word.
// offset is the word's byte offset in the image.
func Encrypt(plain, key, offset uint32) uint32 {
	return plain ^ key ^ (offsetBase - offset) ^ cipherTweak
}

// Decrypt inverts Encrypt for the same key and offset.
func Decrypt(cipher, key, offset uint32) uint32 {
	return cipher ^ key ^ (offsetBase - offset) ^ cipherTweak
}
