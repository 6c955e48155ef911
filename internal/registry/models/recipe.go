package models

// Binary describes one platform-specific build of a recipe, keyed by the
// client-supplied binary package id (a content hash of the build
// configuration, opaque to this layer).
type Binary struct {
	Settings map[string]any `json:"settings"`
	Options  map[string]any `json:"options"`
}

// Recipe is the metadata record for one reference. The JSON field names
// are part of the wire contract Conan clients hard-code against.
//
// Timestamp is epoch milliseconds. Binaries is rendered as "packages",
// the protocol's name for the binary map.
type Recipe struct {
	Reference string            `json:"packageId"`
	Name      string            `json:"packageName"`
	Version   string            `json:"version"`
	User      string            `json:"user"`
	Channel   string            `json:"channel"`
	Timestamp int64             `json:"timestamp"`
	Files     []string          `json:"files"`
	Binaries  map[string]Binary `json:"packages,omitempty"`
}
