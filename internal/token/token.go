// Package token mints and verifies the capability tokens that authorize
// deleting the staging file.
//
// A token is the issuance date (year, month, day) sealed with a shared
// secret. It is valid only on the calendar day it was minted, in the
// verifier's local time zone. The payload is a fixed 4-byte layout
// (big-endian uint16 year, month byte, day byte), so decoding never
// interprets anything beyond those bytes.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/roach88/busstats/internal/clock"
)

var (
	// ErrMissing is returned when no token was supplied.
	ErrMissing = errors.New("token missing")
	// ErrMalformed is returned when a token cannot be decoded or opened
	// with the shared secret.
	ErrMalformed = errors.New("token malformed")
	// ErrExpired is returned when a token opens but was minted on another day.
	ErrExpired = errors.New("token expired")
)

const (
	nonceSize   = 24
	payloadSize = 4
)

var encoding = base64.URLEncoding

// Codec mints and verifies tokens for one shared secret.
type Codec struct {
	key   [32]byte
	clock clock.Clock
}

// NewCodec derives the sealing key from secret. A nil clock uses the system
// clock.
func NewCodec(secret string, clk clock.Clock) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if clk == nil {
		clk = clock.System
	}
	return &Codec{key: sha256.Sum256([]byte(secret)), clock: clk}, nil
}

// Mint returns a token for today.
func (c *Codec) Mint() (string, error) {
	return c.MintFor(c.clock.Now())
}

// MintFor returns a token for the calendar day of day.
func (c *Codec) MintFor(day time.Time) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	payload := make([]byte, payloadSize)
	binary.BigEndian.PutUint16(payload[0:2], uint16(day.Year()))
	payload[2] = byte(day.Month())
	payload[3] = byte(day.Day())

	sealed := secretbox.Seal(nonce[:], payload, &nonce, &c.key)
	return encoding.EncodeToString(sealed), nil
}

// Verify checks that tok opens with the shared secret and names today's date.
func (c *Codec) Verify(tok string) error {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return ErrMissing
	}

	year, month, day, err := c.open(tok)
	if err != nil {
		return err
	}

	ny, nm, nd := c.clock.Now().Date()
	if year != ny || month != nm || day != nd {
		return fmt.Errorf("%w: minted %04d-%02d-%02d", ErrExpired, year, month, day)
	}
	return nil
}

func (c *Codec) open(tok string) (int, time.Month, int, error) {
	raw, err := encoding.DecodeString(tok)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) != nonceSize+secretbox.Overhead+payloadSize {
		return 0, 0, 0, fmt.Errorf("%w: unexpected length %d", ErrMalformed, len(raw))
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	payload, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: authentication failed", ErrMalformed)
	}

	year := int(binary.BigEndian.Uint16(payload[0:2]))
	return year, time.Month(payload[2]), int(payload[3]), nil
}
