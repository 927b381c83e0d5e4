package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRun = "tracesync/run/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RunHash computes the content address of a raw run export.
// Two payloads that differ only in key order or whitespace hash equally.
func RunHash(payload []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("RunHash: decode: %w", err)
	}
	v = dropNulls(v)

	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("RunHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRun, canonical), nil
}

// dropNulls removes null members so they hash like absent ones.
func dropNulls(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			if elem == nil {
				delete(val, k)
				continue
			}
			val[k] = dropNulls(elem)
		}
		return val
	case []any:
		out := val[:0]
		for _, elem := range val {
			if elem == nil {
				continue
			}
			out = append(out, dropNulls(elem))
		}
		return out
	}
	return v
}
