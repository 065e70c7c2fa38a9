// Package sessionid issues the identifiers the server hands out for game
// sessions: UUIDv7 values rendered as 26 lowercase Crockford base32
// characters, so they sort by creation time.
package sessionid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/coder/quartz"
)

const (
	alphabet = "0123456789abcdefghjkmnpqrstvwxyz"
	idLength = 26
)

// Generator creates session IDs from a clock and an entropy source.
type Generator struct {
	clock   quartz.Clock
	entropy io.Reader
}

// NewGenerator returns a generator. Nil arguments fall back to the real clock
// and crypto/rand.
func NewGenerator(clock quartz.Clock, entropy io.Reader) *Generator {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Generator{clock: clock, entropy: entropy}
}

// New returns a fresh ID using the real clock and crypto/rand.
func New() string {
	id, err := NewGenerator(nil, nil).Generate()
	if err != nil {
		panic("sessionid: " + err.Error())
	}
	return id
}

// Generate creates a new ID.
func (g *Generator) Generate() (string, error) {
	var u [16]byte

	ms := uint64(g.clock.Now("sessionid").UnixMilli())
	u[0] = byte(ms >> 40)
	u[1] = byte(ms >> 32)
	u[2] = byte(ms >> 24)
	u[3] = byte(ms >> 16)
	u[4] = byte(ms >> 8)
	u[5] = byte(ms)

	if _, err := io.ReadFull(g.entropy, u[6:]); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	u[6] = (u[6] & 0x0f) | 0x70 // version 7
	u[8] = (u[8] & 0x3f) | 0x80 // variant 10

	return encode(u), nil
}

// encode writes the 128 bits as 26 five-bit groups, the first group holding
// only the top three bits.
func encode(u [16]byte) string {
	hi := binary.BigEndian.Uint64(u[:8])
	lo := binary.BigEndian.Uint64(u[8:])

	out := make([]byte, idLength)
	for i := range out {
		shift := uint(125 - 5*i)
		var v uint64
		switch {
		case shift >= 64:
			v = hi >> (shift - 64)
		case shift+5 <= 64:
			v = lo >> shift
		default:
			v = lo>>shift | hi<<(64-shift)
		}
		out[i] = alphabet[v&0x1f]
	}
	return string(out)
}

// Validate checks that id could have come from Generate.
func Validate(id string) error {
	if len(id) != idLength {
		return fmt.Errorf("session ID must be exactly %d characters, got %d", idLength, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("session ID first character must be 0-7, got %c", id[0])
	}
	for i, c := range id {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("invalid character %c at position %d", c, i)
		}
	}
	return nil
}
