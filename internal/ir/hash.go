package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows changing
// the algorithm later without colliding with old hashes.
const (
	DomainUnit  = "cardity/unit/v1"
	DomainState = "cardity/state/v1"
)

// hashWithDomain returns hex(SHA-256(domain || 0x00 || data)).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalJSON returns the RFC 8785 form of a document.
func CanonicalJSON(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("canonical document: %w", err)
	}
	val, err := ParseValue(data)
	if err != nil {
		return nil, fmt.Errorf("canonical document: %w", err)
	}
	return MarshalCanonical(val)
}

// UnitHash identifies a compiled unit by content. Formatting and key
// order of the source JSON do not affect it.
func UnitHash(doc *Document) (string, error) {
	canonical, err := CanonicalJSON(doc)
	if err != nil {
		return "", fmt.Errorf("unit hash: %w", err)
	}
	return hashWithDomain(DomainUnit, canonical), nil
}

// StateHash identifies a flat state snapshot by content.
func StateHash(snapshot map[string]string) (string, error) {
	canonical, err := MarshalCanonical(FromStrings(snapshot))
	if err != nil {
		return "", fmt.Errorf("state hash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}
