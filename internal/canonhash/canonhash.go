// Package canonhash fingerprints documents by hashing their canonical JSON form.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const prefix = "sha256:"

// Sum serializes v with encoding/json and hashes the result.
// Struct fields keep declaration order and map keys are sorted, so equal values give equal hashes.
func Sum(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	return SumBytes(data), nil
}

func SumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:])
}

// Verify recomputes the hash of v and compares it with want.
func Verify(v any, want string) (bool, error) {
	got, err := Sum(v)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
