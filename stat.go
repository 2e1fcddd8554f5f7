package ipfs

import (
	"context"
	"net/url"
)

// An ObjectStat summarizes a stored object.
type ObjectStat struct {
	Hash           string
	NumLinks       int
	DataSize       int
	CumulativeSize uint64
}

// Stat fetches the stats of the object at path from the daemon. The path
// may be anything the daemon resolves: a bare hash, an /ipfs/ path or an
// /ipns/ name.
func Stat(ctx context.Context, path string) (*ObjectStat, error) {
	args := url.Values{}
	args.Set("arg", path)
	out, err := apiGet(ctx, jsonCodec[ObjectStat]{}, "object/stat", args)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Lookup resolves path to a reference without fetching the object it
// names. The reference carries the size the store reports, so a later Get
// through it verifies against store metadata rather than local bytes.
func Lookup(ctx context.Context, path string) (Reference, error) {
	st, err := Stat(ctx, path)
	if err != nil {
		return Reference{}, err
	}
	return newReference(st.Hash, st.CumulativeSize), nil
}
