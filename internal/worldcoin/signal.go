package worldcoin

import (
	"encoding/hex"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashToField maps a signal to the proof's field element: keccak-256 of
// the signal bytes shifted right by 8 bits, as 0x-prefixed 64-char hex.
// A 0x-prefixed hex signal is hashed as raw bytes.
func HashToField(signal string) string {
	input := []byte(signal)
	if strings.HasPrefix(signal, "0x") {
		if raw, err := hex.DecodeString(signal[2:]); err == nil {
			input = raw
		}
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(input)
	n := new(big.Int).SetBytes(h.Sum(nil))
	n.Rsh(n, 8)
	return "0x" + leftPad(n.Text(16), 64)
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
