// Package md5 names stored files after the MD5 digest of their source URL.
package md5

import (
	"crypto/md5" //nolint:gosec // file naming, not security
	"encoding/hex"
)

// Hasher implements canvas.Hasher with MD5 hex digests.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex MD5 of data.
func (*Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data) //nolint:gosec // file naming, not security
	return hex.EncodeToString(sum[:]), nil
}
