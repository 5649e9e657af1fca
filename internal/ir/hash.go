package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainConfig  = "flagsearch/config/v1"
	DomainCatalog = "flagsearch/catalog/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash computes the identity of a rendered flag string.
//
// The string is split on whitespace first, so "-O3  -fgcse" and
// "-O3 -fgcse" hash identically. Argument order is significant: the
// compiler resolves conflicting switches last-wins.
func ConfigHash(flags string) string {
	canonical, err := MarshalCanonical(strings.Fields(flags))
	if err != nil {
		// []string always marshals
		panic(fmt.Sprintf("ConfigHash: %v", err))
	}
	return hashWithDomain(DomainConfig, canonical)
}

// CatalogHash computes the identity of a loaded catalog from its toolchain,
// version and ordered (enabled, disabled) spellings.
func CatalogHash(toolchain, version string, spellings [][2]string) (string, error) {
	flags := make([]any, len(spellings))
	for i, s := range spellings {
		flags[i] = []string{s[0], s[1]}
	}
	obj := map[string]any{
		"toolchain": toolchain,
		"version":   version,
		"flags":     flags,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CatalogHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCatalog, canonical), nil
}
