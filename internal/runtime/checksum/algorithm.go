// Package checksum computes request checksums and validates the checksums
// services send back.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"hash"
	"hash/crc32"
	"hash/crc64"
	"io"
	"slices"
	"strings"
)

// Algorithm names a checksum function.
type Algorithm string

const (
	CRC32     Algorithm = "crc32"
	CRC32C    Algorithm = "crc32c"
	CRC64NVME Algorithm = "crc64nvme"
	SHA1      Algorithm = "sha1"
	SHA256    Algorithm = "sha256"
	// MD5 can be computed but is never a flexible checksum.
	MD5 Algorithm = "md5"
)

const headerPrefix = "x-amz-checksum-"

var (
	castagnoli = crc32.MakeTable(crc32.Castagnoli)
	nvme       = crc64.MakeTable(0x9a6c9329ac4bc9b5)
)

// validationOrder is fastest first.
var validationOrder = []Algorithm{CRC32C, CRC32, CRC64NVME, SHA1, SHA256}

// Parse maps a case-insensitive name to an Algorithm.
func Parse(name string) (Algorithm, bool) {
	switch a := Algorithm(strings.ToLower(name)); a {
	case CRC32, CRC32C, CRC64NVME, SHA1, SHA256, MD5:
		return a, true
	default:
		return "", false
	}
}

// FromList parses names, dropping the unsupported ones.
func FromList(names []string) []Algorithm {
	out := make([]Algorithm, 0, len(names))
	for _, n := range names {
		if a, ok := Parse(n); ok {
			out = append(out, a)
		}
	}
	return out
}

func (a Algorithm) String() string { return string(a) }

// IsFlexible reports whether a may be used as a flexible checksum.
func (a Algorithm) IsFlexible() bool {
	return slices.Contains(validationOrder, a)
}

// HeaderName is the header carrying the digest of a.
func (a Algorithm) HeaderName() string { return headerPrefix + string(a) }

// NewHash returns a fresh hash for a. CRC sums are written big endian.
func (a Algorithm) NewHash() hash.Hash {
	switch a {
	case CRC32:
		return crc32.NewIEEE()
	case CRC32C:
		return crc32.New(castagnoli)
	case CRC64NVME:
		return crc64.New(nvme)
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	case MD5:
		return md5.New()
	default:
		return nil
	}
}

// PriorityOrder returns the flexible algorithms of list, fastest first.
func PriorityOrder(list []Algorithm) []Algorithm {
	out := make([]Algorithm, 0, len(list))
	for _, a := range validationOrder {
		if slices.Contains(list, a) {
			out = append(out, a)
		}
	}
	return out
}

// Compute returns the base64 digest of data.
func Compute(a Algorithm, data []byte) string {
	h := a.NewHash()
	h.Write(data)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ComputeReader returns the base64 digest of everything r yields.
func ComputeReader(a Algorithm, r io.Reader) (string, error) {
	h := a.NewHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// digest computes a checksum trailer while a body is sent.
type digest struct {
	hash.Hash
}

func newDigest(a Algorithm) *digest { return &digest{Hash: a.NewHash()} }

func (d *digest) Value() string {
	return base64.StdEncoding.EncodeToString(d.Sum(nil))
}
