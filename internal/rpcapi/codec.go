package rpcapi

import (
	"bytes"
	"encoding/gob"
)

// CodecName is registered with grpc's encoding package in place of
// "proto"; every message in this package is a plain Go struct encoded
// with encoding/gob rather than protobuf wire format.
const CodecName = "gob"

// GobCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/gob, standing in for the protobuf codec grpc-go normally
// registers by default.
type GobCodec struct{}

func (GobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (GobCodec) Name() string {
	return CodecName
}
