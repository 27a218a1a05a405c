package protocol

import (
	"encoding/hex"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Selector returns the first 4 bytes of keccak256 of a function signature.
func Selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 42 {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// encodeAddress pads a 20-byte address to a 32-byte word.
func encodeAddress(addr string) []byte {
	b, _ := hex.DecodeString(strings.TrimPrefix(addr, "0x"))
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// encodeUint256 encodes n as a 32-byte big-endian word.
func encodeUint256(n *big.Int) []byte {
	padded := make([]byte, 32)
	b := n.Bytes()
	copy(padded[32-len(b):], b)
	return padded
}

func encodeCall(signature string, words ...[]byte) []byte {
	data := make([]byte, 0, 4+32*len(words))
	data = append(data, Selector(signature)...)
	for _, w := range words {
		data = append(data, w...)
	}
	return data
}

// HexEncode returns the 0x-prefixed hex encoding of data.
func HexEncode(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}
