package svm

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// accountMeta is one entry of an instruction's account list.
type accountMeta struct {
	pubkey   [32]byte
	signer   bool
	writable bool
}

// instruction is a single program invocation within a transaction.
type instruction struct {
	program  [32]byte
	accounts []accountMeta
	data     []byte
}

var computeBudgetProgram = mustPubkey("ComputeBudget111111111111111111111111111111")

func mustPubkey(s string) [32]byte {
	pk, err := decodePubkey(s)
	if err != nil {
		panic("svm: bad builtin pubkey: " + err.Error())
	}
	return pk
}

// setComputeUnitLimit caps the transaction's compute budget.
func setComputeUnitLimit(units uint32) instruction {
	data := make([]byte, 5)
	data[0] = 0x02
	binary.LittleEndian.PutUint32(data[1:], units)
	return instruction{program: computeBudgetProgram, data: data}
}

// setComputeUnitPrice attaches a priority fee in micro-lamports per compute
// unit. Fee escalation resubmits the same instruction set with a higher
// price.
func setComputeUnitPrice(microLamports uint64) instruction {
	data := make([]byte, 9)
	data[0] = 0x03
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return instruction{program: computeBudgetProgram, data: data}
}

// buildMessage serializes a legacy transaction message. The fee payer must be
// the first (and only) signer; keys are deduplicated and ordered writable
// signers, readonly signers, writable non-signers, readonly non-signers.
func buildMessage(feePayer [32]byte, blockhash [32]byte, instrs []instruction) ([]byte, error) {
	type keyFlags struct {
		signer   bool
		writable bool
	}
	flags := map[[32]byte]*keyFlags{
		feePayer: {signer: true, writable: true},
	}
	order := [][32]byte{feePayer}

	note := func(pk [32]byte, signer, writable bool) {
		f, ok := flags[pk]
		if !ok {
			f = &keyFlags{}
			flags[pk] = f
			order = append(order, pk)
		}
		f.signer = f.signer || signer
		f.writable = f.writable || writable
	}

	for _, ins := range instrs {
		for _, acc := range ins.accounts {
			note(acc.pubkey, acc.signer, acc.writable)
		}
		note(ins.program, false, false)
	}

	var keys [][32]byte
	appendClass := func(signer, writable bool) {
		for _, pk := range order {
			f := flags[pk]
			if f.signer == signer && f.writable == writable {
				keys = append(keys, pk)
			}
		}
	}
	appendClass(true, true)
	appendClass(true, false)
	appendClass(false, true)
	appendClass(false, false)

	index := make(map[[32]byte]byte, len(keys))
	for i, pk := range keys {
		index[pk] = byte(i)
	}

	var numSigners, numReadonlySigned, numReadonlyUnsigned byte
	for _, pk := range keys {
		f := flags[pk]
		if f.signer {
			numSigners++
			if !f.writable {
				numReadonlySigned++
			}
		} else if !f.writable {
			numReadonlyUnsigned++
		}
	}
	if numSigners != 1 {
		return nil, fmt.Errorf("svm: message requires %d signers, keeper supports exactly one", numSigners)
	}

	var buf bytes.Buffer
	buf.Write([]byte{numSigners, numReadonlySigned, numReadonlyUnsigned})

	var tmp []byte
	tmp = appendCompactU16(tmp[:0], uint16(len(keys)))
	buf.Write(tmp)
	for _, pk := range keys {
		buf.Write(pk[:])
	}

	buf.Write(blockhash[:])

	tmp = appendCompactU16(tmp[:0], uint16(len(instrs)))
	buf.Write(tmp)
	for _, ins := range instrs {
		buf.WriteByte(index[ins.program])
		tmp = appendCompactU16(tmp[:0], uint16(len(ins.accounts)))
		buf.Write(tmp)
		for _, acc := range ins.accounts {
			buf.WriteByte(index[acc.pubkey])
		}
		tmp = appendCompactU16(tmp[:0], uint16(len(ins.data)))
		buf.Write(tmp)
		buf.Write(ins.data)
	}

	return buf.Bytes(), nil
}

// signTransaction wraps a message with its single ed25519 signature and
// returns the wire transaction plus the base58 signature used as the tx
// handle.
func signTransaction(key ed25519.PrivateKey, message []byte) (wire []byte, signature string) {
	sig := ed25519.Sign(key, message)

	var buf bytes.Buffer
	buf.Write(appendCompactU16(nil, 1))
	buf.Write(sig)
	buf.Write(message)
	return buf.Bytes(), base58Encode(sig)
}

// encodeTransaction renders the wire transaction as the base64 payload
// sendTransaction and simulateTransaction expect.
func encodeTransaction(wire []byte) string {
	return base64.StdEncoding.EncodeToString(wire)
}
