// Package cryptox holds the small crypto helpers used by the server:
// SSH public key fingerprints and salted IP hashing for post records.
package cryptox

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/ssh"
)

// Fingerprint returns the SHA256 fingerprint of an SSH public key in the
// "SHA256:..." form OpenSSH prints. Stored on the user record so operators
// can audit enrolled keys without parsing the raw key material.
func Fingerprint(key ssh.PublicKey) string {
	return ssh.FingerprintSHA256(key)
}

// ParseAuthorizedKey parses one line in authorized_keys format.
func ParseAuthorizedKey(line []byte) (ssh.PublicKey, error) {
	key, _, _, _, err := ssh.ParseAuthorizedKey(line)
	return key, err
}

// MarshalAuthorizedKey serializes a public key to a single authorized_keys
// line without the trailing newline.
func MarshalAuthorizedKey(key ssh.PublicKey) string {
	b := ssh.MarshalAuthorizedKey(key)
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}

// HashIP returns a hex SHA-256 of salt+ip. Posts store this instead of the
// raw client address. An empty salt or ip yields "" so the caller can skip
// the column entirely.
func HashIP(salt, ip string) string {
	if salt == "" || ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}
