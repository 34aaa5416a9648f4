package svm

import (
	"fmt"
	"math/big"
)

// base58 alphabet used by Solana pubkeys, signatures and blockhashes.
const b58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var b58Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(b58Alphabet); i++ {
		idx[b58Alphabet[i]] = int8(i)
	}
	return idx
}()

// base58Encode encodes raw bytes in Bitcoin-style base58.
func base58Encode(input []byte) string {
	zeros := 0
	for zeros < len(input) && input[zeros] == 0 {
		zeros++
	}

	num := new(big.Int).SetBytes(input)
	radix := big.NewInt(58)
	mod := new(big.Int)

	out := make([]byte, 0, len(input)*2)
	for num.Sign() > 0 {
		num.DivMod(num, radix, mod)
		out = append(out, b58Alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		out = append(out, b58Alphabet[0])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// base58Decode decodes a base58 string to raw bytes.
func base58Decode(s string) ([]byte, error) {
	num := new(big.Int)
	radix := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		d := b58Index[s[i]]
		if d < 0 {
			return nil, fmt.Errorf("svm: invalid base58 character %q", s[i])
		}
		num.Mul(num, radix)
		num.Add(num, big.NewInt(int64(d)))
	}

	zeros := 0
	for zeros < len(s) && s[zeros] == b58Alphabet[0] {
		zeros++
	}

	raw := num.Bytes()
	out := make([]byte, zeros+len(raw))
	copy(out[zeros:], raw)
	return out, nil
}

// decodePubkey decodes a base58 address and checks it is 32 bytes.
func decodePubkey(s string) ([32]byte, error) {
	var pk [32]byte
	raw, err := base58Decode(s)
	if err != nil {
		return pk, err
	}
	if len(raw) != 32 {
		return pk, fmt.Errorf("svm: pubkey %q is %d bytes, want 32", s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// appendCompactU16 appends a ShortVec length prefix, the variable-width
// integer Solana messages use for array counts.
func appendCompactU16(buf []byte, v uint16) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
