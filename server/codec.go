package server

import (
	"github.com/goccy/go-json"
)

// jsonCodec carries plain Go messages as JSON over Connect. It is
// registered under the name "json" so clients and handlers agree on the
// application/json content type.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}
