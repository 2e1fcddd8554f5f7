package ipfs

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/ipfs/go-test/random"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/Stebalien/go-ipfs-objects/dagpb"
)

// fakeStore is an in-memory object store behind the API surface: it
// hashes what object/put uploads, serves object/get, and resolves paths
// by walking links the way the daemon would.
type fakeStore struct {
	mu       sync.Mutex
	nodes    map[string][]byte
	resolved []string
}

func newFakeStore(t *testing.T) *fakeStore {
	s := &fakeStore{nodes: map[string][]byte{}}
	fakeDaemon(t, map[string]http.HandlerFunc{
		"object/put": s.put,
		"object/get": s.get,
		"resolve":    s.resolve,
	})
	return s
}

func (s *fakeStore) put(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query(); q.Get("inputenc") != "protobuf" || q.Get("encoding") != "json" {
		panic("bad object/put query: " + r.URL.RawQuery)
	}
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		panic(err)
	}
	part, err := multipart.NewReader(r.Body, params["boundary"]).NextPart()
	if err != nil {
		panic(err)
	}
	raw, err := io.ReadAll(part)
	if err != nil {
		panic(err)
	}
	sum, err := mh.Sum(raw, mh.SHA2_256, -1)
	if err != nil {
		panic(err)
	}
	hash := sum.B58String()
	s.mu.Lock()
	s.nodes[hash] = raw
	s.mu.Unlock()
	jsonReply(map[string]string{"Hash": hash})(w, r)
}

func (s *fakeStore) node(hash string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.nodes[hash]
	return raw, ok
}

func (s *fakeStore) get(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimPrefix(r.URL.Query().Get("arg"), "/ipfs/")
	raw, ok := s.node(hash)
	if !ok {
		errorReply("merkledag: not found", 0)(w, r)
		return
	}
	if _, err := w.Write(raw); err != nil {
		panic(err)
	}
}

func (s *fakeStore) resolve(w http.ResponseWriter, r *http.Request) {
	arg := r.URL.Query().Get("arg")
	s.mu.Lock()
	s.resolved = append(s.resolved, arg)
	s.mu.Unlock()

	segs := strings.Split(strings.TrimPrefix(arg, "/ipfs/"), "/")
	hash := segs[0]
	for _, name := range segs[1:] {
		raw, ok := s.node(hash)
		if !ok {
			errorReply("merkledag: not found", 0)(w, r)
			return
		}
		node, err := dagpb.Unmarshal(raw)
		if err != nil {
			panic(err)
		}
		next := ""
		for _, l := range node.Links {
			if l.Name == name {
				next = mh.Multihash(l.Hash).B58String()
				break
			}
		}
		if next == "" {
			errorReply("no link named \""+name+"\" under "+hash, 0)(w, r)
			return
		}
		hash = next
	}
	jsonReply(map[string]string{"Path": "/ipfs/" + hash})(w, r)
}

func (s *fakeStore) resolveArgs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.resolved...)
}

func TestObjectSize(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 0, NewObject().Size())
	require.EqualValues(t, 7, ObjectWithData([]byte("testing")).Size())

	o := ObjectWithData([]byte("ab"))
	o.AddLink("x", newReference("QmX", 10))
	o.AddLink("y", newReference("QmY", 30))
	require.EqualValues(t, 42, o.Size())
}

func TestObjectEquals(t *testing.T) {
	t.Parallel()

	a := ObjectWithData([]byte("data"))
	b := ObjectWithData([]byte("data"))
	require.True(t, a.Equals(b))

	b.AddLink("l", newReference("QmL", 1))
	require.False(t, a.Equals(b))

	a.AddLink("l", newReference("QmL", 1))
	require.True(t, a.Equals(b))

	a.Links[0].Name = "m"
	require.False(t, a.Equals(b))
}

func TestCommittedEquality(t *testing.T) {
	t.Parallel()

	draft := ObjectWithData([]byte("data"))
	ref := newReference("QmSame", 4)
	a := &CommittedObject{reference: ref, object: draft}
	b := &CommittedObject{reference: ref, object: ObjectWithData([]byte("data"))}
	c := &CommittedObject{reference: newReference("QmOther", 4), object: draft}

	require.True(t, a.Equals(b))
	require.False(t, a.Equals(c))
	require.True(t, a.EqualsObject(ObjectWithData([]byte("data"))))
	require.False(t, a.EqualsObject(NewObject()))
}

func TestTraversalInputErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	o := ObjectWithData([]byte("x"))
	o.AddLink("child", newReference("QmChild", 1))

	_, err := o.Get(ctx, "")
	require.ErrorIs(t, err, ErrEmptyPath)
	_, err = o.Get(ctx, "/ipfs/QmChild")
	require.ErrorIs(t, err, ErrAbsolutePath)
	_, err = o.Get(ctx, "sibling")
	require.ErrorIs(t, err, ErrLinkNotFound)
	_, err = o.Get(ctx, "sibling/deeper/path")
	require.ErrorIs(t, err, ErrLinkNotFound)

	committed := &CommittedObject{reference: newReference("QmC", 1), object: o}
	_, err = committed.Get(ctx, "")
	require.ErrorIs(t, err, ErrEmptyPath)
}

func TestCommitForgedLinkPanics(t *testing.T) {
	t.Parallel()

	o := NewObject()
	o.AddLink("bad", newReference("not-base58-0OIl", 1))
	require.Panics(t, func() { _, _ = o.Commit(context.Background()) })
}

func TestCommitGetRoundTrip(t *testing.T) {
	newFakeStore(t)
	ctx := context.Background()

	draft := ObjectWithData([]byte("testing"))
	committed, err := draft.Commit(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 7, committed.Size())
	require.Equal(t, "/ipfs/"+committed.Hash(), committed.Reference().String())

	fetched, err := Get(ctx, committed.Reference().String())
	require.NoError(t, err)
	require.True(t, fetched.Equals(committed))
	require.True(t, fetched.EqualsObject(draft))
	require.Equal(t, []byte("testing"), fetched.Data())

	big := ObjectWithData(random.Bytes(4096))
	committedBig, err := big.Commit(ctx)
	require.NoError(t, err)
	fetchedBig, err := committedBig.Reference().Get(ctx)
	require.NoError(t, err)
	require.True(t, fetchedBig.EqualsObject(big))
}

func TestCommitLinkedDag(t *testing.T) {
	store := newFakeStore(t)
	ctx := context.Background()

	leafA, err := ObjectWithData([]byte("aaaa")).Commit(ctx)
	require.NoError(t, err)
	leafB, err := ObjectWithData([]byte("bb")).Commit(ctx)
	require.NoError(t, err)

	root := ObjectWithData([]byte("root"))
	root.AddLink("b", leafB.Reference())
	root.AddLink("a", leafA.Reference())
	committed, err := root.Commit(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4+2+4, committed.Size())

	// The wire form keeps the order the draft declared.
	raw, ok := store.node(committed.Hash())
	require.True(t, ok)
	node, err := dagpb.Unmarshal(raw)
	require.NoError(t, err)
	require.Len(t, node.Links, 2)
	require.Equal(t, "b", node.Links[0].Name)
	require.Equal(t, "a", node.Links[1].Name)
	require.EqualValues(t, 2, node.Links[0].Tsize)
	require.Equal(t, []byte("root"), node.Data)

	fetched, err := committed.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, fetched.Equals(leafA))

	viaPath, err := Get(ctx, committed.Reference().String()+"/b")
	require.NoError(t, err)
	require.True(t, viaPath.Equals(leafB))
}

func TestTraversalFirstMatchWins(t *testing.T) {
	newFakeStore(t)
	ctx := context.Background()

	first, err := ObjectWithData([]byte("first")).Commit(ctx)
	require.NoError(t, err)
	second, err := ObjectWithData([]byte("second")).Commit(ctx)
	require.NoError(t, err)

	o := NewObject()
	o.AddLink("dup", first.Reference())
	o.AddLink("dup", second.Reference())

	got, err := o.Get(ctx, "dup")
	require.NoError(t, err)
	require.True(t, got.Equals(first))
}

func TestTraversalDelegatesSuffix(t *testing.T) {
	store := newFakeStore(t)
	ctx := context.Background()

	inner, err := ObjectWithData([]byte("inner")).Commit(ctx)
	require.NoError(t, err)
	mid := NewObject()
	mid.AddLink("deep", inner.Reference())
	midC, err := mid.Commit(ctx)
	require.NoError(t, err)

	outer := NewObject()
	outer.AddLink("mid", midC.Reference())

	// A trailing slash resolves to the link target itself, without the
	// daemon's help.
	viaSlash, err := outer.Get(ctx, "mid/")
	require.NoError(t, err)
	require.True(t, viaSlash.Equals(midC))
	require.Empty(t, store.resolveArgs())

	got, err := outer.Get(ctx, "mid/deep")
	require.NoError(t, err)
	require.True(t, got.Equals(inner))

	// The unresolved tail went to the daemon in one piece.
	require.Equal(t, []string{midC.Hash() + "/deep"}, store.resolveArgs())
}

func TestCommitFailureReturnsDraft(t *testing.T) {
	fakeDaemon(t, map[string]http.HandlerFunc{
		"object/put": errorReply("put failed", 0),
	})

	draft := ObjectWithData([]byte("keep me"))
	draft.AddLink("l", newReference(testHashOf(t, []byte("l")), 3))
	_, err := draft.Commit(context.Background())
	require.Error(t, err)

	var ce *CommitError
	require.ErrorAs(t, err, &ce)
	require.Same(t, draft, ce.Object)
	require.Equal(t, []byte("keep me"), ce.Object.Data)
	require.Len(t, ce.Object.Links, 1)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "put failed", re.Message)
}

func TestGetRejectsUndecodableResolvedPath(t *testing.T) {
	node := &dagpb.Node{Data: []byte("x")}
	ctx := context.Background()

	fakeDaemon(t, map[string]http.HandlerFunc{
		"resolve":    jsonReply(map[string]string{"Path": "/ipfs/bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"}),
		"object/get": protoReply(node),
	})
	_, err := Get(ctx, "/ipns/name")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not base58")

	fakeDaemon(t, map[string]http.HandlerFunc{
		"resolve":    jsonReply(map[string]string{"Path": "gibberish-0OIl"}),
		"object/get": protoReply(node),
	})
	_, err = Get(ctx, "/ipns/other")
	require.Error(t, err)
	require.Contains(t, err.Error(), "gibberish-0OIl")
}
