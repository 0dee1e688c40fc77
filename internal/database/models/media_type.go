package models

import "fmt"

// MediaType identifies the kind of media a post or upload task carries.
// The string values are stored in the database as-is, so they must not change.
type MediaType string

const (
	MediaTypePhoto     MediaType = "photo"
	MediaTypeVideo     MediaType = "video"
	MediaTypeAnimation MediaType = "anim"
)

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypePhoto, MediaTypeVideo, MediaTypeAnimation:
		return true
	}
	return false
}

// ParseMediaType converts a stored string value back into a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	t := MediaType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown media type %q", s)
	}
	return t, nil
}

func (t MediaType) String() string {
	return string(t)
}
