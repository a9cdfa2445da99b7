// Package ore contains the application core for the ORE miner app:
// the signature invocation state machine that drives wallet-bridge
// signing, the claim flow controller, the key import flow, and the
// async query plumbing the UI data (balance, proof) hangs off of.
//
// The package deliberately owns no rendering, routing, or wire format.
// Everything that talks to the outside world (the wallet bridge, the
// RPC gateway, keypair persistence) is consumed through the interfaces
// in interfaces.go; concrete implementations live in the gateway and
// signer subpackages.
package ore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TokenDecimals is the mint's decimal-places constant. Token amounts
// are stored in the smallest unit and divided by 10^TokenDecimals for
// display.
const TokenDecimals uint8 = 9

// LamportsPerSol is the number of lamports in one SOL.
const LamportsPerSol uint64 = 1_000_000_000

// KeyLength is the byte length of a serialized keypair
// (32-byte ed25519 seed followed by the 32-byte public key).
const KeyLength = 64

// AmountToUI converts a smallest-unit token amount to its display
// value by applying the mint's decimal divisor.
//
// Example:
//
//	AmountToUI(2_500_000_000, 9) // 2.5
func AmountToUI(amount uint64, decimals uint8) float64 {
	return float64(amount) / math.Pow10(int(decimals))
}

// FormatAmount renders a smallest-unit token amount as a decimal
// string with trailing zeros trimmed, e.g. 2_500_000_000 -> "2.5".
func FormatAmount(amount uint64, decimals uint8) string {
	s := strconv.FormatFloat(AmountToUI(amount, decimals), 'f', -1, 64)
	return s
}

// LamportsToSol converts a lamport balance to SOL for display.
func LamportsToSol(lamports uint64) float64 {
	return AmountToUI(lamports, 9)
}

// ParseAmount converts a decimal amount string (e.g. "2.5") to the
// smallest unit for the given number of decimals. It rejects negative
// values and amounts with more fractional digits than the mint allows.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("amount %q exceeds %d decimal places", s, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f := uint64(0)
	if frac != "" {
		f, err = strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
	}

	scale := uint64(math.Pow10(int(decimals)))
	if w > (math.MaxUint64-f)/scale {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	return w*scale + f, nil
}
