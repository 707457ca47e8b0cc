package contenthash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"darkroom/internal/services/images"
)

// Compute returns the fingerprint of an ordered image set. Two galleries with
// the same image ids, checksums, and order always produce the same value; any
// addition, removal, reorder, or content change produces a different one.
// Only metadata is consumed; image bytes are never read.
func Compute(imgs []images.Image) string {
	h := sha256.New()
	var sizeBuf [8]byte
	for _, img := range imgs {
		// Length-prefixed framing so ("ab","c") and ("a","bc") cannot collide.
		binary.BigEndian.PutUint64(sizeBuf[:], uint64(len(img.ID)))
		h.Write(sizeBuf[:])
		h.Write([]byte(img.ID))
		binary.BigEndian.PutUint64(sizeBuf[:], uint64(len(img.Checksum)))
		h.Write(sizeBuf[:])
		h.Write([]byte(img.Checksum))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EmptyHash is the fingerprint of a gallery with no images. Callers must
// treat empty galleries as unarchivable before enqueueing work; the constant
// exists so that Compute never has to error.
var EmptyHash = Compute(nil)
