package ipfs

import (
	"context"
	"errors"
	"net/url"
	"strconv"
)

// A Reference is the store's receipt for a committed object: the base58
// multihash naming it and the cumulative size of everything reachable
// through it. References are only produced by commits, stats and fetches.
// The zero Reference names nothing and must not be used.
type Reference struct {
	hash string
	size uint64
}

func newReference(hash string, size uint64) Reference {
	return Reference{hash: hash, size: size}
}

// Hash returns the base58 multihash naming the object.
func (r Reference) Hash() string { return r.hash }

// Size returns the cumulative size of the referenced object.
func (r Reference) Size() uint64 { return r.size }

// Equals reports whether both references name the same object.
func (r Reference) Equals(other Reference) bool { return r == other }

// String renders the reference as a canonical /ipfs/<hash> path.
func (r Reference) String() string { return "/ipfs/" + r.hash }

// Get fetches the referenced object. A fetched object whose size disagrees
// with the reference is rejected with ErrSizeMismatch: the store returned
// something other than what this reference was created from.
func (r Reference) Get(ctx context.Context) (*CommittedObject, error) {
	obj, err := getObject(ctx, r.hash)
	if err != nil {
		return nil, err
	}
	if obj.Size() != r.size {
		return nil, ErrSizeMismatch
	}
	return &CommittedObject{reference: r, object: obj}, nil
}

// Pin asks the store to keep the referenced object. With recursive set,
// everything reachable from it is kept as well.
func (r Reference) Pin(ctx context.Context, recursive bool) error {
	args := url.Values{}
	args.Set("recursive", strconv.FormatBool(recursive))
	args.Set("arg", r.hash)
	_, err := apiPost(ctx, ignoreCodec{}, "pin/add", args)
	return err
}

// Unpin releases the referenced object. Unpinning an object that is not
// pinned succeeds, so Unpin is safe to repeat.
func (r Reference) Unpin(ctx context.Context, recursive bool) error {
	args := url.Values{}
	args.Set("recursive", strconv.FormatBool(recursive))
	args.Set("arg", r.hash)
	_, err := apiPost(ctx, ignoreCodec{}, "pin/rm", args)
	var re *RemoteError
	if errors.As(err, &re) {
		switch re.Message {
		case msgNotPinned:
			log.Debugf("unpin %s: already unpinned", r.hash)
			return nil
		case msgInvalidRef:
			// References hold hashes the store itself handed out.
			if Debug {
				panic("ipfs: unpin sent an invalid reference: " + r.hash)
			}
		}
	}
	return err
}
