// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrChecksumMismatch means the downloaded archive's SHA256 digest
	// differed from the published one.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrAssetNotFound means checksums.txt carried no entry for the asset.
	ErrAssetNotFound = errors.New("asset not found in checksums")

	errNoValidEntries = errors.New("no valid checksum entries found")
)

// ChecksumEntry is one line of checksums.txt: a lowercase hex SHA256
// digest and the asset filename it covers.
type ChecksumEntry struct {
	Hash     string
	Filename string
}

// ChecksumError carries both digests of a failed verification. It
// wraps ErrChecksumMismatch for errors.Is.
type ChecksumError struct {
	Filename string
	Expected string
	Got      string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// ParseChecksums reads sha256sum output: "{hex}  {filename}", two
// spaces between the fields. Blank and malformed lines are skipped;
// a file with no usable entries is an error.
func ParseChecksums(r io.Reader) ([]ChecksumEntry, error) {
	var entries []ChecksumEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			continue
		}

		hash := parts[0]
		filename := strings.TrimSpace(parts[1])
		if filename == "" || !isValidHexHash(hash) {
			continue
		}

		entries = append(entries, ChecksumEntry{
			Hash:     strings.ToLower(hash),
			Filename: filename,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	if len(entries) == 0 {
		return nil, errNoValidEntries
	}
	return entries, nil
}

// FindChecksum returns the digest recorded for filename, or
// ErrAssetNotFound.
func FindChecksum(entries []ChecksumEntry, filename string) (string, error) {
	for _, e := range entries {
		if e.Filename == filename {
			return e.Hash, nil
		}
	}
	return "", ErrAssetNotFound
}

// VerifyFile hashes the file at path and compares against expectedHash,
// case-insensitively. A mismatch yields a *ChecksumError.
func VerifyFile(path, expectedHash string) error {
	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, expectedHash) {
		return &ChecksumError{
			Filename: path,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}
	return nil
}

// ComputeFileHash streams the file at path through SHA256 and returns
// the lowercase hex digest.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
