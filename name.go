package ipfs

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// DefaultPublishLifetime is how long Publish keeps a name pointing at an
// object.
const DefaultPublishLifetime = 24 * time.Hour

// Resolve canonicalizes path to an immutable /ipfs/ path. With recursive
// set, chains of ipns names are followed all the way down.
func Resolve(ctx context.Context, path string, recursive bool) (string, error) {
	args := url.Values{}
	args.Set("arg", path)
	args.Set("recursive", strconv.FormatBool(recursive))
	out, err := apiGet(ctx, jsonCodec[resolveOut]{}, "resolve", args)
	if err != nil {
		return "", err
	}
	return out.Path, nil
}

type resolveOut struct {
	Path string
}

// Publish points the node's ipns name at the object for
// DefaultPublishLifetime.
func Publish(ctx context.Context, obj *CommittedObject) error {
	return PublishFor(ctx, obj, DefaultPublishLifetime)
}

// PublishFor points the node's ipns name at the object for the given
// lifetime. The object is already committed, so the daemon is told not to
// re-resolve it.
func PublishFor(ctx context.Context, obj *CommittedObject, lifetime time.Duration) error {
	args := url.Values{}
	args.Set("resolve", "false")
	args.Set("lifetime", formatLifetime(lifetime))
	args.Set("arg", obj.Hash())
	_, err := apiPost(ctx, ignoreCodec{}, "name/publish", args)
	return err
}

// Seconds plus nanoseconds round-trips any duration through the daemon's
// parser losslessly.
func formatLifetime(d time.Duration) string {
	return fmt.Sprintf("%ds%dns", d/time.Second, d%time.Second)
}
