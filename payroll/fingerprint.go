package payroll

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/warp/labor-engine/generic"
)

// FingerprintLength is the number of hex characters kept as the storage key.
// 24 hex chars = 96 bits of SHA-256.
const FingerprintLength = 24

// Fingerprint identifies a calculation by the content of its inputs.
type Fingerprint struct {
	Key  string // truncated digest, used as the record id
	Full string // full SHA-256 hex digest
}

// ComputeFingerprint derives the fingerprint of
// tenant|employee|period|sha256(canonical(snapshot)).
func ComputeFingerprint(tenantID, employeeID string, period generic.Month, snapshot any) (Fingerprint, error) {
	snapshotHash, err := HashCanonical(snapshot)
	if err != nil {
		return Fingerprint{}, err
	}
	full := sha256Hex([]byte(tenantID + "|" + employeeID + "|" + period.String() + "|" + snapshotHash))
	return Fingerprint{Key: full[:FingerprintLength], Full: full}, nil
}

// HashCanonical is the SHA-256 hex digest of v's canonical JSON.
func HashCanonical(v any) (string, error) {
	data, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return sha256Hex(data), nil
}

// CanonicalJSON serializes v with object keys sorted at every depth and
// numbers kept in their original textual form. Two logically equal inputs
// produce the same bytes whatever their key order.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	// maps are encoded with sorted keys
	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
