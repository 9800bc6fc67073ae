package server

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// cborCodec carries service messages as canonical CBOR. It is the default
// codec for Client.
type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(msg any) ([]byte, error) {
	return cborEncMode.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte, msg any) error {
	return cbor.Unmarshal(data, msg)
}

// jsonCodec replaces Connect's protobuf JSON codec so plain HTTP clients
// can post application/json.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("server: failed to create CBOR enc mode: " + err.Error())
	}
	cborEncMode = em
}
