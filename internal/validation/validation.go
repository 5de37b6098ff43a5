// Package validation provides input validation for the Niner Score API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// MaxFID bounds Farcaster IDs; anything at or above this is rejected.
const MaxFID = 10_000_000_000

// MaxWalletAddresses bounds how many wallets a single request may aggregate.
const MaxWalletAddresses = 10

var (
	// Farcaster usernames: alphanumeric, dots, dashes, underscores, optional .eth suffix
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,19}(\.eth)?$`)
	// Ethereum addresses
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	// Transaction hashes: 0x + 64 hex chars
	txHashRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
	// NFT token IDs: "<fid>-<timestamp>"
	tokenIDRegex = regexp.MustCompile(`^\d+-\d+$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidFID checks that a Farcaster ID is a positive integer within bounds.
func IsValidFID(fid int64) bool {
	return fid > 0 && fid < MaxFID
}

// IsValidUsername checks Farcaster username format (max 25 chars).
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 25 {
		return false
	}
	return usernameRegex.MatchString(username)
}

// IsValidEthAddress checks if a string is a valid Ethereum address
func IsValidEthAddress(addr string) bool {
	return ethAddressRegex.MatchString(addr)
}

// IsValidTxHash checks transaction hash format (0x + 64 hex chars).
func IsValidTxHash(hash string) bool {
	return txHashRegex.MatchString(hash)
}

// IsValidTokenID checks NFT token ID format ("<int>-<int>").
func IsValidTokenID(tokenID string) bool {
	return tokenIDRegex.MatchString(tokenID)
}

// SanitizeUsername normalizes a username for comparison and lookups.
func SanitizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// SanitizeAddress normalizes an Ethereum address
func SanitizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(addr, "0x") && len(addr) == 40 {
		addr = "0x" + addr
	}
	return addr
}

// SanitizeAddresses normalizes a wallet list, dropping malformed entries and
// duplicates, capped at MaxWalletAddresses.
func SanitizeAddresses(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = SanitizeAddress(a)
		if !IsValidEthAddress(a) || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
		if len(out) == MaxWalletAddresses {
			break
		}
	}
	return out
}
