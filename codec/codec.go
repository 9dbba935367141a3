// Package codec centralizes the encoding of persisted facegate state:
// template files, attendance log lines, and backup bundles.
//
// Codec selection is a persistence-format boundary: bytes written with
// one codec are only guaranteed to decode with the same codec.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
