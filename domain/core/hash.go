package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// ComputeInputHash fingerprints the inputs of an estimation run so two runs
// over the same identities and settings can be recognised. Identity lists are
// order-insensitive; params are keyed and sorted.
func ComputeInputHash(identities [][]string, params map[string]interface{}) Hash {
	var data strings.Builder
	for _, ids := range identities {
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		data.WriteString(strings.Join(sorted, "\x1f"))
		data.WriteString("\x1e")
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("=%v;", params[key]))
	}

	return NewHash([]byte(data.String()))
}
