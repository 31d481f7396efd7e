package mock

import (
	"encoding/binary"
	"log"
	"sync"
	"time"

	"gbalink/link"
	"gbalink/multiboot"
)

// Faults make the emulated console misbehave in controlled ways.
type Faults struct {
	// SyncAfter sync words are answered with zero before the console is ready.
	SyncAfter int
	// KeyAfter palette offers are answered without a key byte.
	KeyAfter int
	// VerifyPolls final polls are answered as still busy.
	VerifyPolls int
	// SlowPayload empty reads happen before each payload acknowledgement.
	SlowPayload int
	// SplitReplies delivers replies at most two bytes per read.
	SplitReplies bool
	// SilentAfter stops all replies after this many words (0 = never).
	SilentAfter int
	// WrongChecksum makes the console report a corrupted checksum.
	WrongChecksum bool
	// StaleHeaderReply delivers the reply to this header halfword (counted
	// from 1) behind a repeat of the previous reply, as a lagging adapter does.
	StaleHeaderReply int
}

type consoleState int

const (
	stateWaitSync consoleState = iota
	stateSynced
	stateHeader
	stateHeaderDone
	stateInfo
	statePalette
	stateConfirm
	stateLength
	statePayload
	stateFinal
	stateChecksum
	stateBooted
	stateBroken
)

// Console emulates the slave end of the multiboot protocol as run by the
// console BIOS. It implements link.ByteLink, replying to each written word.
type Console struct {
	mu sync.Mutex

	Faults Faults
	// KeyByte is the byte the console offers during key exchange.
	KeyByte byte
	// LengthReply is the byte the console returns for the length word.
	LengthReply byte

	state   consoleState
	words   int
	syncs   int
	offers  int
	polls   int
	partial []byte

	pending []byte
	last    uint32
	stale   bool
	delay   int

	header  [multiboot.HeaderSize]byte
	payload []byte
	end     int
	offset  int
	keys    multiboot.Keystream
	crc     multiboot.Checksum

	writes  int
	reads   int
	voltage link.Voltage
	closed  bool
}

func NewConsole() *Console {
	return &Console{
		KeyByte:     0x5A,
		LengthReply: 0x3C,
	}
}

func (c *Console) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return link.ErrNotReady
	}
	c.writes++

	c.partial = append(c.partial, p...)
	for len(c.partial) >= 4 {
		w := binary.BigEndian.Uint32(c.partial)
		c.partial = c.partial[4:]

		c.words++
		wasPayload := c.state == statePayload
		reply := c.handle(w)
		if c.Faults.SilentAfter > 0 && c.words > c.Faults.SilentAfter {
			c.pending = c.pending[:0]
			continue
		}

		// like the hardware, only the latest reply is held for the master:
		c.pending = c.pending[:0]
		if c.stale {
			c.pending = binary.BigEndian.AppendUint32(c.pending, c.last)
			c.stale = false
		}
		c.pending = binary.BigEndian.AppendUint32(c.pending, reply)
		c.last = reply
		c.delay = 0
		if wasPayload {
			c.delay = c.Faults.SlowPayload
		}
	}
	return nil
}

// Read never sleeps; a missing reply is reported as an immediate timeout.
func (c *Console) Read(max int, _ time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, link.ErrNotReady
	}
	c.reads++

	if c.delay > 0 {
		c.delay--
		return nil, nil
	}

	n := max
	if c.Faults.SplitReplies && n > 2 {
		n = 2
	}
	if n > len(c.pending) {
		n = len(c.pending)
	}
	out := make([]byte, n)
	copy(out, c.pending)
	c.pending = c.pending[n:]
	return out, nil
}

func (c *Console) SetLinkVoltage(v link.Voltage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return link.ErrNotReady
	}
	c.voltage = v
	return nil
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func syncReply() uint32 {
	return 0x7202 << 16
}

func keyReply(b byte) uint32 {
	return 0x73<<24 | uint32(b)<<16
}

// handle advances the console state machine by one received word and
// returns the reply word.
func (c *Console) handle(w uint32) uint32 {
	switch c.state {
	case stateWaitSync:
		if w != 0x6202 {
			return 0
		}
		if c.syncs < c.Faults.SyncAfter {
			c.syncs++
			return 0
		}
		c.state = stateSynced
		return syncReply()

	case stateSynced:
		switch w {
		case 0x6202:
			return syncReply()
		case 0x6102:
			c.state = stateHeader
			c.offset = 0
			return syncReply()
		}
		return 0

	case stateHeader:
		i := c.offset / 2
		c.stale = c.Faults.StaleHeaderReply == i+1
		binary.LittleEndian.PutUint16(c.header[c.offset:], uint16(w))
		c.offset += 2
		if c.offset == multiboot.HeaderSize {
			c.state = stateHeaderDone
		}
		return (uint32(multiboot.HeaderSize/2-i)<<8 | 0x02) << 16

	case stateHeaderDone:
		if w != 0x6200 {
			c.state = stateBroken
			return 0
		}
		c.state = stateInfo
		return 0x0002 << 16

	case stateInfo:
		if w != 0x6202 {
			c.state = stateBroken
			return 0
		}
		c.state = statePalette
		return syncReply()

	case statePalette:
		if w&0xFF00 != 0x6300 {
			return syncReply()
		}
		if c.offers < c.Faults.KeyAfter {
			c.offers++
			return syncReply()
		}
		c.keys.Seed(multiboot.SeedFromKeyReply(c.KeyByte))
		c.crc.Reset()
		c.state = stateConfirm
		return keyReply(c.KeyByte)

	case stateConfirm:
		if w&0xFF00 != 0x6400 || byte(w) != multiboot.HandshakeByte(c.KeyByte) {
			log.Printf("mock: bad key confirmation %08x\n", w)
			c.state = stateBroken
			return 0
		}
		c.state = stateLength
		return keyReply(c.KeyByte)

	case stateLength:
		c.end = multiboot.ImageEnd(w)
		if c.end < multiboot.HeaderSize || c.end > multiboot.MaxImageSize {
			log.Printf("mock: bad length word %08x\n", w)
			c.state = stateBroken
			return 0
		}
		c.offset = multiboot.HeaderSize
		c.payload = make([]byte, 0, c.end-multiboot.HeaderSize)
		c.state = statePayload
		if c.offset >= c.end {
			c.state = stateFinal
		}
		return keyReply(c.LengthReply)

	case statePayload:
		plain := multiboot.Decrypt(w, c.keys.Next(), uint32(c.offset))
		c.crc.Absorb(plain)
		c.payload = binary.LittleEndian.AppendUint32(c.payload, plain)
		ack := uint32(c.offset) & 0xFFFF
		c.offset += 4
		if c.offset >= c.end {
			c.state = stateFinal
		}
		return ack << 16

	case stateFinal:
		switch w {
		case 0x0065:
			if c.polls < c.Faults.VerifyPolls {
				c.polls++
				return 0x0074 << 16
			}
			return 0x0075 << 16
		case 0x0066:
			c.state = stateChecksum
			return 0x0075 << 16
		}
		return 0

	case stateChecksum:
		c.crc.Absorb(multiboot.FinalWord(multiboot.HandshakeByte(c.KeyByte), c.LengthReply))
		crc := c.crc.Value()
		if c.Faults.WrongChecksum {
			crc ^= 0x5A5A
		}
		if uint16(w) == crc {
			log.Printf("mock: checksum %04x matches; booting\n", crc)
			c.state = stateBooted
		} else {
			log.Printf("mock: checksum %04x received, computed %04x\n", uint16(w), crc)
			c.state = stateBroken
		}
		return uint32(crc) << 16
	}

	return 0
}

// Booted reports whether the console accepted an image and started it.
func (c *Console) Booted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateBooted
}

// Image returns the header and decrypted payload received so far.
func (c *Console) Image() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, 0, multiboot.HeaderSize+len(c.payload))
	out = append(out, c.header[:]...)
	return append(out, c.payload...)
}

// Counts returns the number of Write and Read calls made on the link.
func (c *Console) Counts() (writes, reads int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes, c.reads
}

func (c *Console) Voltage() link.Voltage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voltage
}
