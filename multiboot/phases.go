package multiboot

import (
	"context"
	"fmt"
)

// sync sends sync words until the console answers with its client id.
func (s *Session) sync(ctx context.Context) (attempts int, err error) {
	for attempts = 1; attempts <= s.cfg.HandshakeAttempts; attempts++ {
		if attempts > 1 {
			if err = s.sleep(ctx, s.cfg.HandshakeDelay); err != nil {
				return
			}
		}

		var r uint32
		var ok bool
		r, ok, err = s.exchange(ctx, cmdSync)
		if err != nil {
			return
		}
		if ok && r>>16 == replySync {
			return
		}

		if attempts < s.cfg.HandshakeAttempts {
			if ok {
				s.retry("console not ready (reply %08x), attempt %d of %d", r, attempts, s.cfg.HandshakeAttempts)
			} else {
				s.retry("no reply to sync, attempt %d of %d", attempts, s.cfg.HandshakeAttempts)
			}
		}
	}

	attempts--
	err = s.fail(HandshakeTimeout, fmt.Errorf("console did not answer %d sync attempts", attempts))
	return
}

func (s *Session) handshake(ctx context.Context) error {
	attempts, err := s.sync(ctx)
	if err != nil {
		return err
	}
	s.info("console answered sync after %d attempt(s)", attempts)

	if err = s.send(ctx, cmdRecognized); err != nil {
		return err
	}
	if _, ok, err := s.await(ctx, s.cfg.HandshakeAttempts, "recognition"); err != nil {
		return err
	} else if !ok {
		return s.fail(HandshakeTimeout, fmt.Errorf("no reply to recognition"))
	}

	return nil
}

// sendHeader sends the header one halfword per exchange. The console counts
// down the halfwords it still expects in each reply. It counts every halfword
// it receives, so a reply that does not match is read again rather than
// answered by sending the halfword twice.
func (s *Session) sendHeader(ctx context.Context) error {
	budget := 1 + s.cfg.HeaderRetries

	for i := 0; i < headerHalfwords; i++ {
		hw := headerHalfword(s.image, i)
		expected := uint32(headerHalfwords-i)<<8 | clientBit

		if err := s.send(ctx, hw); err != nil {
			return err
		}

		var (
			bad    uint32
			sawBad bool
		)
		for attempt := 1; ; attempt++ {
			r, ok, err := s.receive(ctx)
			if err != nil {
				return err
			}
			if ok && r>>16 == expected {
				break
			}
			if ok {
				bad, sawBad = r, true
			}

			if attempt >= budget {
				if sawBad {
					return s.fail(HeaderTransferError, fmt.Errorf("halfword %d: reply %08x, expected %04x in high half", i, bad, expected))
				}
				return s.fail(HeaderTransferError, fmt.Errorf("halfword %d: no reply after %d reads", i, attempt))
			}

			if ok {
				s.retry("halfword %d: reply %08x, expected %04x; reading again (%d of %d)", i, r, expected, attempt, budget)
				continue
			}
			s.retry("halfword %d: no reply, reading again (%d of %d)", i, attempt, budget)
		}

		s.sent += 2
	}

	s.info("header sent")
	return nil
}

func (s *Session) exchangeKey(ctx context.Context) error {
	budget := s.cfg.KeyAttempts

	// header done, then exchange master/slave info again:
	for _, cmd := range []uint32{cmdHeaderDone, cmdSync} {
		if err := s.send(ctx, cmd); err != nil {
			return err
		}
		if _, ok, err := s.await(ctx, budget, fmt.Sprintf("command %04x", cmd)); err != nil {
			return err
		} else if !ok {
			return s.fail(KeyExchangeError, fmt.Errorf("no reply to command %04x", cmd))
		}
	}

	// offer the palette until the console answers with its key byte:
	var cc byte
	for attempt := 1; ; attempt++ {
		r, ok, err := s.exchange(ctx, cmdPalette)
		if err != nil {
			return err
		}
		if ok && r>>24 == replyKeyTag {
			cc = byte(r >> 16)
			break
		}
		if attempt >= budget {
			if ok {
				return s.fail(KeyExchangeError, fmt.Errorf("malformed key reply %08x", r))
			}
			return s.fail(KeyExchangeError, fmt.Errorf("no key reply after %d attempts", attempt))
		}
		s.retry("waiting for key reply, attempt %d of %d", attempt, budget)
	}

	s.seed = SeedFromKeyReply(cc)
	s.keys.Seed(s.seed)
	s.hh = HandshakeByte(cc)
	s.info("session seed %08x", s.seed)

	if err := s.send(ctx, cmdHandshake|uint32(s.hh)); err != nil {
		return err
	}
	if _, ok, err := s.await(ctx, budget, "key confirmation"); err != nil {
		return err
	} else if !ok {
		return s.fail(KeyExchangeError, fmt.Errorf("no reply to key confirmation"))
	}

	length := LengthWord(len(s.image))
	if err := s.send(ctx, length); err != nil {
		return err
	}
	r, ok, err := s.await(ctx, budget, "length")
	if err != nil {
		return err
	}
	if !ok {
		return s.fail(KeyExchangeError, fmt.Errorf("no reply to length %08x", length))
	}
	s.rr = byte(r >> 16)

	return nil
}

// sendPayload streams the encrypted payload. Each word must be acknowledged
// with its image offset before the next one is sent; words are never re-sent.
func (s *Session) sendPayload(ctx context.Context) error {
	budget := 1 + s.cfg.PayloadRetries
	total := len(s.image) - HeaderSize
	nextProgress := s.cfg.ProgressInterval

	for offset := HeaderSize; offset < len(s.image); offset += 4 {
		if err := s.checkCancel(ctx); err != nil {
			return err
		}

		plain := payloadWord(s.image, offset)
		key := s.keys.Next()
		if err := s.send(ctx, Encrypt(plain, key, uint32(offset))); err != nil {
			return err
		}
		s.crc.Absorb(plain)

		expected := uint32(offset) & 0xFFFF
		for attempt := 1; ; attempt++ {
			r, ok, err := s.receive(ctx)
			if err != nil {
				return err
			}
			if ok {
				if r>>16 != expected {
					return s.fail(PayloadTransferError, fmt.Errorf("offset %#x: acknowledged %04x", offset, r>>16))
				}
				break
			}
			if attempt >= budget {
				return s.fail(PayloadTransferError, fmt.Errorf("offset %#x: no acknowledgement after %d reads", offset, attempt))
			}
			s.retry("offset %#x: no acknowledgement, reading again (%d of %d)", offset, attempt, budget)
		}

		s.sent += 4
		if done := offset + 4 - HeaderSize; done >= nextProgress {
			s.info("sent %d of %d payload bytes", done, total)
			nextProgress += s.cfg.ProgressInterval
		}
	}

	s.info("payload sent")
	return nil
}

func (s *Session) finalize(ctx context.Context) error {
	budget := s.cfg.FinalizeAttempts

	s.crc.Absorb(FinalWord(s.hh, s.rr))
	crc := s.crc.Value()

	for attempt := 1; ; attempt++ {
		r, ok, err := s.exchange(ctx, cmdFinalPoll)
		if err != nil {
			return err
		}
		if ok && r>>16 == replyFinalReady {
			break
		}
		if attempt >= budget {
			return s.fail(FinalizeTimeout, fmt.Errorf("console not ready for checksum after %d polls", attempt))
		}
		s.retry("console still verifying, poll %d of %d", attempt, budget)
	}

	if err := s.send(ctx, cmdFinalCRC); err != nil {
		return err
	}
	if _, ok, err := s.await(ctx, budget, "checksum announcement"); err != nil {
		return err
	} else if !ok {
		return s.fail(FinalizeTimeout, fmt.Errorf("no reply to checksum announcement"))
	}

	if err := s.send(ctx, uint32(crc)); err != nil {
		return err
	}
	r, ok, err := s.await(ctx, budget, "checksum")
	if err != nil {
		return err
	}
	if !ok {
		return s.fail(FinalizeTimeout, fmt.Errorf("no reply to checksum %04x", crc))
	}
	if got := uint16(r >> 16); got != crc {
		return s.fail(ChecksumMismatch, fmt.Errorf("console computed %04x, sent %04x", got, crc))
	}

	return nil
}
