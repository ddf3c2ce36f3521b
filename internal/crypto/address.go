// Package crypto holds wallet-address helpers built on go-ethereum.
package crypto

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// ValidWallet reports whether s is a literal "0x" followed by exactly 40 hex
// digits. Mixed case is accepted without checking the EIP-55 checksum.
func ValidWallet(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// CheckWallet returns domain.ErrInvalidWallet when s is not a valid wallet.
func CheckWallet(s string) error {
	if !ValidWallet(s) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidWallet, s)
	}
	return nil
}

// NormalizeWallet lower-cases a valid wallet so lookups and cache keys do not
// depend on the caller's casing.
func NormalizeWallet(s string) (string, error) {
	if err := CheckWallet(s); err != nil {
		return "", err
	}
	return strings.ToLower(s), nil
}

// ChecksumWallet renders a valid wallet in EIP-55 mixed case for display.
func ChecksumWallet(s string) string {
	if !ValidWallet(s) {
		return s
	}
	return common.HexToAddress(s).Hex()
}
