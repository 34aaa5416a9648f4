package svm

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// Anchor-style 8-byte account discriminators, sha256("account:<Name>")[:8].
var (
	orderDiscriminator = [8]byte{0x86, 0xad, 0xdf, 0xb9, 0x4d, 0x56, 0x1c, 0x33}
	vaultDiscriminator = [8]byte{0xd3, 0x08, 0xe8, 0x2b, 0x02, 0x98, 0x75, 0x77}
)

// Anchor instruction discriminators, sha256("global:<name>")[:8].
var (
	executeOrderDiscriminator = [8]byte{0x73, 0x3d, 0xb4, 0x18, 0xa8, 0x20, 0xd7, 0x14}
)

// Borsh layout of the program's Order account, after the discriminator:
//
//	vault             Pubkey   (32)
//	owner             Pubkey   (32)
//	order_id          u64
//	kind              u8
//	state             u8
//	oracle            Pubkey   (32)
//	target_price      u128     (1e18 fixed point)
//	deadline          i64      (unix seconds, 0 = none)
//	input_mint        Pubkey   (32)
//	output_mint       Pubkey   (32)
//	input_amount      u64
//	min_output_amount u64
//	slippage_bps      u16
//	created_at        i64
//	bump              u8
const orderAccountSize = 229

const (
	offVault      = 8
	offOwner      = 40
	offOrderID    = 72
	offKind       = 80
	offState      = 81
	offOracle     = 82
	offTarget     = 114
	offDeadline   = 130
	offInputMint  = 138
	offOutputMint = 170
	offInputAmt   = 202
	offMinOutAmt  = 210
	offSlippage   = 218
	offCreatedAt  = 220
)

// decodeOrderAccount parses an Order account's raw data into the domain
// model. Pubkeys come back as base58 strings.
func decodeOrderAccount(data []byte) (domain.Order, error) {
	if len(data) < orderAccountSize {
		return domain.Order{}, fmt.Errorf("svm: order account is %d bytes, want %d", len(data), orderAccountSize)
	}
	if !bytes.Equal(data[:8], orderDiscriminator[:]) {
		return domain.Order{}, fmt.Errorf("svm: account is not an order (discriminator %x)", data[:8])
	}

	order := domain.Order{
		ID:    binary.LittleEndian.Uint64(data[offOrderID:]),
		Owner: base58Encode(data[offOwner : offOwner+32]),
		Kind:  domain.OrderKind(data[offKind]),
		State: domain.OrderState(data[offState]),
		Trigger: domain.Trigger{
			Oracle:      base58Encode(data[offOracle : offOracle+32]),
			TargetPrice: u128LE(data[offTarget : offTarget+16]),
		},
		Execution: domain.Execution{
			InputToken:      base58Encode(data[offInputMint : offInputMint+32]),
			OutputToken:     base58Encode(data[offOutputMint : offOutputMint+32]),
			InputAmount:     new(big.Int).SetUint64(binary.LittleEndian.Uint64(data[offInputAmt:])),
			MinOutputAmount: new(big.Int).SetUint64(binary.LittleEndian.Uint64(data[offMinOutAmt:])),
			SlippageBps:     binary.LittleEndian.Uint16(data[offSlippage:]),
		},
		CreatedAt: time.Unix(int64(binary.LittleEndian.Uint64(data[offCreatedAt:])), 0).UTC(),
	}

	if deadline := int64(binary.LittleEndian.Uint64(data[offDeadline:])); deadline != 0 {
		order.Trigger.Deadline = time.Unix(deadline, 0).UTC()
	}
	return order, nil
}

func u128LE(b []byte) *big.Int {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[15-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}

// Oracle price account layout:
//
//	price        i64  (raw mantissa)
//	expo         i32  (decimal exponent, typically negative)
//	conf         u64
//	publish_time i64  (unix seconds)
const oracleAccountSize = 28

// decodeOracleAccount parses an oracle price account and normalizes the
// quote to 1e18 fixed point. Non-positive and stale quotes are rejected.
func decodeOracleAccount(data []byte, now time.Time, maxAge time.Duration) (*big.Int, error) {
	if len(data) < oracleAccountSize {
		return nil, fmt.Errorf("svm: oracle account is %d bytes, want %d: %w", len(data), oracleAccountSize, domain.ErrPriceUnavailable)
	}

	price := int64(binary.LittleEndian.Uint64(data[0:8]))
	expo := int32(binary.LittleEndian.Uint32(data[8:12]))
	publishTime := int64(binary.LittleEndian.Uint64(data[20:28]))

	if price <= 0 {
		return nil, fmt.Errorf("svm: oracle reported non-positive price %d: %w", price, domain.ErrPriceUnavailable)
	}
	if maxAge > 0 {
		published := time.Unix(publishTime, 0)
		if now.Sub(published) > maxAge {
			return nil, fmt.Errorf("svm: oracle price published %s is stale: %w", published.UTC().Format(time.RFC3339), domain.ErrPriceUnavailable)
		}
	}

	// price * 10^(18+expo), computed exactly in integers.
	scaled := new(big.Int).SetInt64(price)
	shift := 18 + int(expo)
	switch {
	case shift > 0:
		scaled.Mul(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil))
	case shift < 0:
		scaled.Quo(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-shift)), nil))
	}
	return scaled, nil
}

// decodeAccountData unwraps the ["<base64>", "base64"] data pair returned by
// account queries.
func decodeAccountData(data []string) ([]byte, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("svm: empty account data")
	}
	if len(data) > 1 && data[1] != "base64" {
		return nil, fmt.Errorf("svm: unsupported account encoding %q", data[1])
	}
	raw, err := base64.StdEncoding.DecodeString(data[0])
	if err != nil {
		return nil, fmt.Errorf("svm: decode account data: %w", err)
	}
	return raw, nil
}
