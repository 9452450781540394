package types

import (
	"crypto/rand"
	"sync"
	"time"
)

// BatchID identifies one delivered batch. It is a 128-bit ULID: a 48-bit
// millisecond timestamp followed by 80 random bits, so ids sort by drain time.
type BatchID [16]byte

// Crockford's Base32 alphabet (excludes I, L, O, U).
const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// BatchIDGenerator produces batch ids that increase monotonically even when
// several batches are drained within the same millisecond.
type BatchIDGenerator struct {
	mu       sync.Mutex
	lastMs   uint64
	lastRand [10]byte
}

// NewBatchIDGenerator creates a generator.
func NewBatchIDGenerator() *BatchIDGenerator {
	return &BatchIDGenerator{}
}

// Next returns a new id stamped with the current time.
func (g *BatchIDGenerator) Next() (BatchID, error) {
	return g.NextAt(time.Now())
}

// NextAt returns a new id stamped with t.
func (g *BatchIDGenerator) NextAt(t time.Time) (BatchID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := uint64(t.UnixMilli())

	var id BatchID
	for i := 0; i < 6; i++ {
		id[i] = byte(ms >> (40 - 8*i))
	}

	if ms == g.lastMs {
		// same millisecond: bump the random tail as an 80-bit big-endian counter
		for i := len(g.lastRand) - 1; i >= 0; i-- {
			g.lastRand[i]++
			if g.lastRand[i] != 0 {
				break
			}
		}
	} else {
		if _, err := rand.Read(g.lastRand[:]); err != nil {
			return BatchID{}, err
		}
		g.lastMs = ms
	}
	copy(id[6:], g.lastRand[:])

	return id, nil
}

// Millis returns the timestamp component as Unix milliseconds.
func (id BatchID) Millis() uint64 {
	var ms uint64
	for i := 0; i < 6; i++ {
		ms = ms<<8 | uint64(id[i])
	}
	return ms
}

// Compare orders ids lexicographically. Returns -1, 0 or 1.
func (id BatchID) Compare(other BatchID) int {
	for i := range id {
		switch {
		case id[i] < other[i]:
			return -1
		case id[i] > other[i]:
			return 1
		}
	}
	return 0
}

// String returns the 26-character Crockford Base32 form.
func (id BatchID) String() string {
	var buf [26]byte
	// 128 bits are encoded as 130 bits (two leading zero bits), five bits per character.
	for i := 0; i < 26; i++ {
		bit := i*5 - 2
		var v byte
		for j := 0; j < 5; j++ {
			b := bit + j
			if b < 0 {
				continue
			}
			if id[b/8]&(0x80>>(b%8)) != 0 {
				v |= 0x10 >> j
			}
		}
		buf[i] = crockfordBase32[v]
	}
	return string(buf[:])
}

// ParseBatchID parses the 26-character form produced by String.
func ParseBatchID(s string) (BatchID, error) {
	if len(s) != 26 {
		return BatchID{}, ErrInvalidBatchIDLength
	}
	var id BatchID
	for i := 0; i < 26; i++ {
		v := decodeBase32(s[i])
		if v == 0xFF {
			return BatchID{}, ErrInvalidBatchIDCharacter
		}
		bit := i*5 - 2
		for j := 0; j < 5; j++ {
			b := bit + j
			if b < 0 {
				if v&(0x10>>j) != 0 {
					// the two padding bits must be zero
					return BatchID{}, ErrInvalidBatchIDCharacter
				}
				continue
			}
			if v&(0x10>>j) != 0 {
				id[b/8] |= 0x80 >> (b % 8)
			}
		}
	}
	return id, nil
}

// decodeBase32 decodes one Crockford Base32 character, case-insensitively.
// Returns 0xFF for characters outside the alphabet.
func decodeBase32(c byte) byte {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	for i := 0; i < len(crockfordBase32); i++ {
		if crockfordBase32[i] == c {
			return byte(i)
		}
	}
	return 0xFF
}
