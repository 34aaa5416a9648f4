package svm

import (
	"bytes"
	"crypto/ed25519"
	"testing"
)

func TestBase58RoundTrip(t *testing.T) {
	tests := [][]byte{
		{},
		{0},
		{0, 0, 0, 1},
		{0xff, 0xfe, 0xfd},
		bytes.Repeat([]byte{0xab}, 32),
	}
	for _, in := range tests {
		out, err := base58Decode(base58Encode(in))
		if err != nil {
			t.Fatalf("decode(encode(%x)) error: %v", in, err)
		}
		if !bytes.Equal(in, out) {
			t.Errorf("round trip of %x produced %x", in, out)
		}
	}
}

func TestBase58KnownVectors(t *testing.T) {
	// The system program address is 32 zero bytes.
	zero := make([]byte, 32)
	if got := base58Encode(zero); got != "11111111111111111111111111111111" {
		t.Errorf("encode(zero pubkey) = %s", got)
	}

	if _, err := base58Decode("0OIl"); err == nil {
		t.Error("expected an error for characters outside the alphabet")
	}
}

func TestCompactU16(t *testing.T) {
	tests := []struct {
		v    uint16
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, tt := range tests {
		if got := appendCompactU16(nil, tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("appendCompactU16(%d) = %x, want %x", tt.v, got, tt.want)
		}
	}
}

func TestBuildMessageLayout(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	var feePayer [32]byte
	copy(feePayer[:], priv.Public().(ed25519.PublicKey))

	var program, other [32]byte
	program[0] = 0xaa
	other[0] = 0xbb

	ins := instruction{
		program: program,
		accounts: []accountMeta{
			{pubkey: other, writable: true},
			{pubkey: feePayer, signer: true, writable: true},
		},
		data: []byte{1, 2, 3},
	}

	var blockhash [32]byte
	msg, err := buildMessage(feePayer, blockhash, []instruction{ins})
	if err != nil {
		t.Fatalf("buildMessage() error: %v", err)
	}

	// Header: 1 signer, 0 readonly signed, 1 readonly unsigned (the program).
	if msg[0] != 1 || msg[1] != 0 || msg[2] != 1 {
		t.Errorf("header = %v, want [1 0 1]", msg[:3])
	}
	// 3 distinct keys, fee payer first.
	if msg[3] != 3 {
		t.Errorf("key count = %d, want 3", msg[3])
	}
	if !bytes.Equal(msg[4:36], feePayer[:]) {
		t.Error("fee payer must be the first account key")
	}

	wire, sig := signTransaction(priv, msg)
	if sig == "" {
		t.Fatal("empty signature")
	}
	// Wire layout: sig count, 64-byte signature, then the message.
	if wire[0] != 1 {
		t.Errorf("signature count = %d, want 1", wire[0])
	}
	if !bytes.Equal(wire[65:], msg) {
		t.Error("message must follow the signature verbatim")
	}
	if !ed25519.Verify(priv.Public().(ed25519.PublicKey), msg, wire[1:65]) {
		t.Error("signature does not verify over the message")
	}
}

func TestComputeBudgetInstructions(t *testing.T) {
	limit := setComputeUnitLimit(400_000)
	if limit.data[0] != 0x02 || len(limit.data) != 5 {
		t.Errorf("unit limit data = %x", limit.data)
	}

	price := setComputeUnitPrice(2_500)
	if price.data[0] != 0x03 || len(price.data) != 9 {
		t.Errorf("unit price data = %x", price.data)
	}
}
