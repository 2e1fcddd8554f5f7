package ipfs

import (
	"context"

	"github.com/blang/semver/v4"
)

// VersionInfo describes the daemon build serving the API.
type VersionInfo struct {
	Version string
	Commit  string
	Repo    string
	System  string
	Golang  string
}

// Semver parses the daemon's version number.
func (v *VersionInfo) Semver() (*semver.Version, error) {
	return semver.New(v.Version)
}

// Version asks the daemon which build it is running.
func Version(ctx context.Context) (*VersionInfo, error) {
	out, err := apiGet(ctx, jsonCodec[VersionInfo]{}, "version", nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
