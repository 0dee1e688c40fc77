// Package imagehash computes perceptual fingerprints of image bytes.
// Equality of the encoded fingerprints is the sole dedup signal used by the
// rest of the system; no distance matching is performed.
package imagehash

import (
	"bytes"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Hash decodes imageBytes and returns its perceptual hash encoded as a
// fixed-length string (e.g. "p:a1b2c3d4e5f60718"). The encoding is stable
// under resize and re-encode of the same visual content. A decoding failure
// is returned as an error.
func Hash(imageBytes []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", errors.Wrap(err, "decode image")
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", errors.Wrap(err, "compute perceptual hash")
	}
	return hash.ToString(), nil
}
