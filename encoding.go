package ipfs

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Stebalien/go-ipfs-objects/dagpb"
)

// A codec decodes one API response body. Its hint, when non-empty, is sent
// as the request's encoding argument so the daemon replies in kind.
type codec[T any] interface {
	hint() string
	decode(io.Reader) (T, error)
}

// ignoreCodec drains and discards the response body.
type ignoreCodec struct{}

func (ignoreCodec) hint() string { return "" }

func (ignoreCodec) decode(r io.Reader) (struct{}, error) {
	_, err := io.Copy(io.Discard, r)
	return struct{}{}, err
}

// jsonCodec decodes a JSON response into T.
type jsonCodec[T any] struct{}

func (jsonCodec[T]) hint() string { return "json" }

func (jsonCodec[T]) decode(r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		var zero T
		return zero, fmt.Errorf("unmarshal: %w", err)
	}
	return out, nil
}

// protoCodec decodes a protobuf-encoded merkledag node.
type protoCodec struct{}

func (protoCodec) hint() string { return "protobuf" }

func (protoCodec) decode(r io.Reader) (*dagpb.Node, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	n, err := dagpb.Unmarshal(buf)
	if err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return n, nil
}
