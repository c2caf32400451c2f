package base

import (
	"bufio"
	"fmt"
)

// consumeByte reads one byte and checks that it matches the expected wire
// character.
func consumeByte(rb *bufio.Reader, expected byte) error {
	b, err := rb.ReadByte()
	if err != nil {
		return err
	}

	if b != expected {
		return fmt.Errorf("expected '%c', got '%c'", expected, b)
	}

	return nil
}

// readUpTo returns the bytes up to and including delim, failing when the
// delimiter does not appear within maxLen bytes. The peek-then-discard loop
// keeps oversized tokens from being buffered.
func readUpTo(rb *bufio.Reader, delim byte, maxLen int) ([]byte, error) {
	for i := 1; i <= maxLen; i++ {
		byts, err := rb.Peek(i)
		if err != nil {
			return nil, err
		}

		if byts[i-1] == delim {
			rb.Discard(i) //nolint:errcheck
			return byts, nil
		}
	}
	return nil, fmt.Errorf("token longer than %d bytes", maxLen)
}
