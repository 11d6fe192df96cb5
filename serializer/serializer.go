// Package serializer converts structured payloads to and from wire bytes.
//
// The transit layer is serialization-agnostic: every packet crosses this
// interface exactly once in each direction. The JSON implementation is the
// default; alternative codecs only need to satisfy Serializer.
package serializer

import (
	"encoding/json"

	"github.com/disarticulate/moleculer/errors"
)

// Serializer converts payload structs to wire bytes and back.
type Serializer interface {
	// Marshal serializes a payload into wire bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes wire bytes into the given payload struct.
	Unmarshal(data []byte, v any) error
}

// JSONSerializer is the default Serializer using encoding/json.
type JSONSerializer struct{}

// NewJSON returns a JSON serializer.
func NewJSON() *JSONSerializer {
	return &JSONSerializer{}
}

// Marshal serializes v to JSON.
func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "JSONSerializer", "Marshal", "encode payload")
	}
	return data, nil
}

// Unmarshal deserializes JSON into v.
func (s *JSONSerializer) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.WrapInvalid(err, "JSONSerializer", "Unmarshal", "decode payload")
	}
	return nil
}
