package auth

import (
	"encoding/hex"
	"strings"

	"learnhub/bounty-pipeline/internal/domain"

	"golang.org/x/crypto/sha3"
)

// NormalizeWallet validates an EVM address and returns it lower-cased.
// All-lower or all-upper input is accepted as is; mixed case must carry a
// valid EIP-55 checksum.
func NormalizeWallet(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if len(addr) != 42 || !(strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X")) {
		return "", domain.ErrInvalidWallet
	}
	body := addr[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return "", domain.ErrInvalidWallet
	}

	lower := strings.ToLower(body)
	if body != lower && body != strings.ToUpper(body) {
		if checksumHex(lower) != body {
			return "", domain.ErrInvalidWallet
		}
	}
	return "0x" + lower, nil
}

// ChecksumWallet returns the EIP-55 form of a valid address.
func ChecksumWallet(raw string) (string, error) {
	norm, err := NormalizeWallet(raw)
	if err != nil {
		return "", err
	}
	return "0x" + checksumHex(norm[2:]), nil
}

// checksumHex upper-cases each letter whose matching nibble of
// keccak256(lowerHex) is 8 or more.
func checksumHex(lowerHex string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lowerHex))
	digest := h.Sum(nil)

	out := []byte(lowerHex)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
