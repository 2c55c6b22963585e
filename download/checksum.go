package download

import (
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"
)

func newSHA1() hash.Hash { return sha1.New() }

// verifySHA1 compares the digest of the streamed bytes with the catalog's
// declared hex value, ignoring case.
func verifySHA1(expected string, h hash.Hash) error {
	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(strings.TrimSpace(expected), actual) {
		return &ChecksumError{Expected: expected, Actual: actual}
	}
	return nil
}

// FileSHA1 returns the hex SHA-1 of a file on disk.
func FileSHA1(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha1.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
