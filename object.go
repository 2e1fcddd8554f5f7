// Package ipfs is a client for the HTTP API of an IPFS node, built around
// the object store: immutable merkledag nodes of opaque data and named
// links. Drafts are assembled locally as Objects, stored with Commit, and
// come back as CommittedObjects naming their store-assigned hash. A
// Reference is the store's receipt for an object; the only way to obtain
// one is to commit, stat or fetch, so a link can never point at anything
// the store has not confirmed.
package ipfs

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/Stebalien/go-ipfs-objects/dagpb"
)

// A Link is a named edge from a draft to a committed object. Targets are
// always committed, so DAGs are built leaves first.
type Link struct {
	Name   string
	Object Reference
}

// An Object is a draft merkledag node: opaque data plus an ordered list of
// links. Drafts live entirely on the client and are freely mutable until
// committed. The zero value is an empty object.
type Object struct {
	Data  []byte
	Links []Link
}

// NewObject returns an empty draft.
func NewObject() *Object { return &Object{} }

// ObjectWithData returns a draft carrying data and no links.
func ObjectWithData(data []byte) *Object { return &Object{Data: data} }

// AddLink appends a link to the draft. Link order is preserved through
// commit, and duplicate names are allowed; lookups take the first match.
func (o *Object) AddLink(name string, target Reference) {
	o.Links = append(o.Links, Link{Name: name, Object: target})
}

// Size returns the cumulative size of the draft: its own data plus the
// cumulative sizes of all link targets.
func (o *Object) Size() uint64 {
	size := uint64(len(o.Data))
	for i := range o.Links {
		size += o.Links[i].Object.Size()
	}
	return size
}

// Equals structurally compares two drafts.
func (o *Object) Equals(other *Object) bool {
	if !bytes.Equal(o.Data, other.Data) {
		return false
	}
	if len(o.Links) != len(other.Links) {
		return false
	}
	for i := range o.Links {
		if o.Links[i] != other.Links[i] {
			return false
		}
	}
	return true
}

// Get resolves a path relative to the draft and fetches the object it
// names. The first segment selects a link by name; any remaining segments
// are resolved by the daemon starting from that link's target.
func (o *Object) Get(ctx context.Context, path string) (*CommittedObject, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if strings.HasPrefix(path, "/") {
		return nil, ErrAbsolutePath
	}
	prefix, rest, _ := strings.Cut(path, "/")
	for i := range o.Links {
		l := &o.Links[i]
		if l.Name != prefix {
			continue
		}
		if rest == "" {
			return l.Object.Get(ctx)
		}
		return Get(ctx, l.Object.Hash()+"/"+rest)
	}
	return nil, ErrLinkNotFound
}

// Commit stores the draft. On success the draft's contents belong to the
// returned CommittedObject and must not be mutated anymore. On failure the
// returned error is a *CommitError carrying the draft, untouched, for the
// caller to repair or retry.
func (o *Object) Commit(ctx context.Context) (*CommittedObject, error) {
	node := &dagpb.Node{Data: o.Data}
	if len(o.Links) > 0 {
		node.Links = make([]dagpb.Link, len(o.Links))
	}
	for i := range o.Links {
		l := &o.Links[i]
		h, err := mh.FromB58String(l.Object.Hash())
		if err != nil {
			// Link hashes come from prior commits, stats and fetches; one
			// that does not decode cannot have entered through the public
			// API.
			panic(fmt.Sprintf("ipfs: link %q has invalid hash %q: %s", l.Name, l.Object.Hash(), err))
		}
		node.Links[i] = dagpb.Link{Hash: h, Name: l.Name, Tsize: l.Object.Size()}
	}

	args := url.Values{}
	args.Set("inputenc", "protobuf")
	out, err := apiPostData(ctx, jsonCodec[putOut]{}, "object/put", args, node.Marshal())
	if err != nil {
		return nil, &CommitError{Err: err, Object: o}
	}
	return &CommittedObject{
		reference: newReference(out.Hash, o.Size()),
		object:    o,
	}, nil
}

type putOut struct {
	Hash string
}

// A CommittedObject pairs a stored object with the reference the store
// assigned it. Its contents are frozen; Edit hands the draft back for
// further changes.
type CommittedObject struct {
	reference Reference
	object    *Object
}

// Data returns the object's data.
func (c *CommittedObject) Data() []byte { return c.object.Data }

// Links returns the object's links.
func (c *CommittedObject) Links() []Link { return c.object.Links }

// Size returns the object's cumulative size.
func (c *CommittedObject) Size() uint64 { return c.reference.size }

// Hash returns the base58 multihash naming the object.
func (c *CommittedObject) Hash() string { return c.reference.hash }

// Reference returns the handle naming this object.
func (c *CommittedObject) Reference() Reference { return c.reference }

// Get resolves a path relative to this object.
func (c *CommittedObject) Get(ctx context.Context, path string) (*CommittedObject, error) {
	return c.object.Get(ctx, path)
}

// Stat summarizes the object locally, without asking the daemon.
func (c *CommittedObject) Stat() *ObjectStat {
	return &ObjectStat{
		Hash:           c.reference.hash,
		NumLinks:       len(c.object.Links),
		DataSize:       len(c.object.Data),
		CumulativeSize: c.reference.size,
	}
}

// Pin keeps the object in the store.
func (c *CommittedObject) Pin(ctx context.Context, recursive bool) error {
	return c.reference.Pin(ctx, recursive)
}

// Unpin releases the object.
func (c *CommittedObject) Unpin(ctx context.Context, recursive bool) error {
	return c.reference.Unpin(ctx, recursive)
}

// Edit returns the object as a draft again. The CommittedObject is stale
// afterwards: mutating the draft does not change the stored object, and
// committing it produces a new reference.
func (c *CommittedObject) Edit() *Object { return c.object }

// Equals reports whether both handles name the same stored object.
func (c *CommittedObject) Equals(other *CommittedObject) bool {
	return c.reference == other.reference
}

// EqualsObject structurally compares the committed contents with a draft.
func (c *CommittedObject) EqualsObject(o *Object) bool {
	return c.object.Equals(o)
}

// Get resolves an absolute ipfs or ipns path and fetches the object it
// names.
func Get(ctx context.Context, path string) (*CommittedObject, error) {
	resolved, err := Resolve(ctx, path, true)
	if err != nil {
		return nil, err
	}
	obj, err := getObject(ctx, resolved)
	if err != nil {
		return nil, err
	}
	hash := resolved[strings.LastIndex(resolved, "/")+1:]
	if _, err := mh.FromB58String(hash); err != nil {
		if _, cerr := cid.Decode(hash); cerr == nil {
			return nil, fmt.Errorf("resolved path %q: hash %q is not base58", resolved, hash)
		}
		return nil, fmt.Errorf("resolved path %q: %w", resolved, err)
	}
	return &CommittedObject{
		reference: newReference(hash, obj.Size()),
		object:    obj,
	}, nil
}

func getObject(ctx context.Context, path string) (*Object, error) {
	args := url.Values{}
	args.Set("arg", path)
	node, err := apiGet(ctx, protoCodec{}, "object/get", args)
	if err != nil {
		return nil, err
	}
	return objectFromNode(node)
}

func objectFromNode(node *dagpb.Node) (*Object, error) {
	obj := &Object{Data: node.Data}
	if len(node.Links) > 0 {
		obj.Links = make([]Link, len(node.Links))
	}
	for i := range node.Links {
		l := &node.Links[i]
		h, err := mh.Cast(l.Hash)
		if err != nil {
			return nil, fmt.Errorf("link %q hash is not a valid multihash: %w", l.Name, err)
		}
		obj.Links[i] = Link{
			Name:   l.Name,
			Object: newReference(h.B58String(), l.Tsize),
		}
	}
	return obj, nil
}
