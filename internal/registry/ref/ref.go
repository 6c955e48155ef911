// Package ref implements the four-part Conan package coordinate and its
// canonical string form, which doubles as the metadata primary key and the
// blob key namespace root.
package ref

import (
	"fmt"
	"strings"
)

// Ref identifies a recipe: name/version@user/channel. Immutable once
// constructed.
type Ref struct {
	Name    string
	Version string
	User    string
	Channel string
}

// New builds a Ref from the four URL path segments.
func New(name, version, user, channel string) Ref {
	return Ref{Name: name, Version: version, User: user, Channel: channel}
}

// String returns the canonical form "name/version@user/channel".
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s@%s/%s", r.Name, r.Version, r.User, r.Channel)
}

// IsZero reports whether any coordinate is missing.
func (r Ref) IsZero() bool {
	return r.Name == "" || r.Version == "" || r.User == "" || r.Channel == ""
}

// Parse decodes a canonical reference string back into its coordinates.
func Parse(s string) (Ref, error) {
	head, tail, ok := strings.Cut(s, "@")
	if !ok {
		return Ref{}, fmt.Errorf("invalid reference %q: missing '@'", s)
	}
	name, version, ok := strings.Cut(head, "/")
	if !ok {
		return Ref{}, fmt.Errorf("invalid reference %q: missing version", s)
	}
	user, channel, ok := strings.Cut(tail, "/")
	if !ok {
		return Ref{}, fmt.Errorf("invalid reference %q: missing channel", s)
	}
	r := Ref{Name: name, Version: version, User: user, Channel: channel}
	if r.IsZero() || strings.Contains(version, "/") || strings.Contains(channel, "/") {
		return Ref{}, fmt.Errorf("invalid reference %q", s)
	}
	return r, nil
}

// RecipeKey returns the blob key for a recipe-scope file.
func (r Ref) RecipeKey(filename string) string {
	return r.String() + "/" + filename
}

// BinaryKey returns the blob key for a binary-scope file. Recipe and
// binary files live in disjoint subtrees under the reference.
func (r Ref) BinaryKey(binaryID, filename string) string {
	return r.String() + "/package/" + binaryID + "/" + filename
}
