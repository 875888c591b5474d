package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainStatement = "ormsql/statement/v1"
	DomainSchema    = "ormsql/schema/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StatementFingerprint computes a stable identity for a compiled statement.
// Callers that cache compiled SQL key their cache on this value.
func StatementFingerprint(dialect, sql string, aliases []string) (string, error) {
	if aliases == nil {
		aliases = []string{}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"aliases": aliases,
		"dialect": dialect,
		"sql":     sql,
	})
	if err != nil {
		return "", fmt.Errorf("StatementFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStatement, canonical), nil
}

// SchemaHash computes a stable identity for a set of entity specs.
// Entity order matters: it is the declaration order of the source files.
func SchemaHash(entities []EntitySpec) (string, error) {
	names := make([]any, len(entities))
	for i, e := range entities {
		names[i] = e.canonical()
	}
	canonical, err := MarshalCanonical(names)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}
