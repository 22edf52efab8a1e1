package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"
)

// DuplicateThreshold is the Hamming distance between two difference hashes
// below which two logos are treated as the same image.
const DuplicateThreshold = 10

// ErrHashMismatch is returned when comparing fingerprints of different kinds.
var ErrHashMismatch = errors.New("fingerprint kinds differ")

// Fingerprint is a 64-bit difference hash of a decoded image.
type Fingerprint uint64

// PerceptualHash decodes the image and computes its difference hash.
// Re-encoded, resized or lightly recompressed copies of a logo hash close together.
func PerceptualHash(data []byte) (Fingerprint, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, fmt.Errorf("difference hash: %w", err)
	}
	return Fingerprint(hash.GetHash()), nil
}

// Distance returns the Hamming distance between two fingerprints.
func (f Fingerprint) Distance(other Fingerprint) (int, error) {
	a := goimagehash.NewImageHash(uint64(f), goimagehash.DHash)
	b := goimagehash.NewImageHash(uint64(other), goimagehash.DHash)
	d, err := a.Distance(b)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHashMismatch, err)
	}
	return d, nil
}

// Similar reports whether two fingerprints are within DuplicateThreshold.
func (f Fingerprint) Similar(other Fingerprint) bool {
	d, err := f.Distance(other)
	return err == nil && d < DuplicateThreshold
}

// String renders the fingerprint as 16 lowercase hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// ParseFingerprint parses the output of Fingerprint.String.
func ParseFingerprint(s string) (Fingerprint, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("invalid fingerprint %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}
