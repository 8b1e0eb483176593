package preview

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// FrameID identifies one frame of a captured document. IDs are opaque
// 128-bit random tokens; the zero value is never issued.
type FrameID [16]byte

// NewFrameID returns a fresh unguessable frame ID.
func NewFrameID() FrameID {
	var id FrameID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("preview: reading random frame id: %v", err))
	}
	return id
}

// ParseFrameID parses the 32-character hex form produced by String.
func ParseFrameID(s string) (FrameID, error) {
	var id FrameID
	if len(s) != 2*len(id) {
		return FrameID{}, fmt.Errorf("preview: frame id %q: want %d hex digits", s, 2*len(id))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return FrameID{}, fmt.Errorf("preview: frame id %q: %w", s, err)
	}
	return id, nil
}

// String returns the lowercase hex encoding of the ID.
func (id FrameID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first eight hex digits, for logs and overlays.
func (id FrameID) Short() string {
	return id.String()[:8]
}

// IsZero reports whether id is the zero FrameID.
func (id FrameID) IsZero() bool {
	return id == FrameID{}
}
