package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	backoff "github.com/cenkalti/backoff/v4"
	logging "github.com/ipfs/go-log/v2"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

var log = logging.Logger("ipfsobj")

const (
	// DefaultAPIEndpoint is the daemon API base used until SetAPIEndpoint
	// overrides it.
	DefaultAPIEndpoint = "http://127.0.0.1:5001/api/v0"

	// DefaultPathName is the default repo directory name under $HOME.
	DefaultPathName = ".ipfs"
	// DefaultApiFile is the repo file holding the daemon's api multiaddr.
	DefaultApiFile = "api"
	// EnvDir overrides the repo location for LocalAPIEndpoint.
	EnvDir = "IPFS_PATH"
)

// ErrApiNotFound is returned by LocalAPIEndpoint when the repo has no api
// file, which usually means no daemon is running.
var ErrApiNotFound = errors.New("ipfs api address could not be found")

var (
	endpointMu sync.RWMutex
	endpoint   = DefaultAPIEndpoint
)

var httpClient = &http.Client{
	Transport: &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DisableKeepAlives: true,
	},
	CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
		return fmt.Errorf("unexpected redirect")
	},
}

// APIEndpoint returns the daemon API base URL requests are issued against.
func APIEndpoint() string {
	endpointMu.RLock()
	defer endpointMu.RUnlock()
	return endpoint
}

// SetAPIEndpoint points the package at a different daemon. It accepts an
// http(s) URL or a multiaddr such as /ip4/127.0.0.1/tcp/5001. Calls
// started before the switch finish against the endpoint they began with.
func SetAPIEndpoint(addr string) error {
	base, err := normalizeEndpoint(addr)
	if err != nil {
		return err
	}
	endpointMu.Lock()
	endpoint = base
	endpointMu.Unlock()
	return nil
}

func normalizeEndpoint(addr string) (string, error) {
	if strings.HasPrefix(addr, "/") {
		maddr, err := ma.NewMultiaddr(addr)
		if err != nil {
			return "", fmt.Errorf("invalid api address %q: %w", addr, err)
		}
		network, host, err := manet.DialArgs(maddr)
		if err != nil {
			return "", err
		}
		switch network {
		case "tcp", "tcp4", "tcp6":
			return "http://" + host + "/api/v0", nil
		default:
			return "", fmt.Errorf("unsupported api address network %q", network)
		}
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid api url %q: %w", addr, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api/v0"
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// LocalAPIEndpoint reads the running daemon's address from the api file in
// the local repo, honoring EnvDir.
func LocalAPIEndpoint() (string, error) {
	dir := os.Getenv(EnvDir)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, DefaultPathName)
	}
	raw, err := os.ReadFile(filepath.Join(dir, DefaultApiFile))
	if err != nil {
		if os.IsNotExist(err) {
			err = ErrApiNotFound
		}
		return "", err
	}
	return normalizeEndpoint(strings.TrimSpace(string(raw)))
}

// WaitForEndpoint polls the daemon until it answers a version request,
// backing off exponentially between attempts. It returns nil once the
// daemon responds, or an error when ctx ends first.
func WaitForEndpoint(ctx context.Context) error {
	op := func() error {
		_, err := Version(ctx)
		if err != nil {
			log.Debugf("api not ready: %s", err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func requestURL(base, command string, args url.Values) string {
	return fmt.Sprintf("%s/%s?%s", base, command, args.Encode())
}

func apiGet[T any](ctx context.Context, c codec[T], command string, args url.Values) (T, error) {
	return send(ctx, c, http.MethodGet, command, args, "", nil)
}

func apiPost[T any](ctx context.Context, c codec[T], command string, args url.Values) (T, error) {
	return send(ctx, c, http.MethodPost, command, args, "", nil)
}

// apiPostData uploads data as a single multipart part named "data", the
// shape the daemon's put handlers consume.
func apiPostData[T any](ctx context.Context, c codec[T], command string, args url.Values, data []byte) (T, error) {
	var zero T
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("data", "data")
	if err != nil {
		return zero, err
	}
	if _, err := part.Write(data); err != nil {
		return zero, err
	}
	if err := w.Close(); err != nil {
		return zero, err
	}
	return send(ctx, c, http.MethodPost, command, args, w.FormDataContentType(), body)
}

func send[T any](ctx context.Context, c codec[T], method, command string, args url.Values, contentType string, body io.Reader) (T, error) {
	var zero T
	if args == nil {
		args = url.Values{}
	}
	if hint := c.hint(); hint != "" {
		args.Set("encoding", hint)
	}

	u := requestURL(APIEndpoint(), command, args)
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return zero, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
		req.Close = true
	}

	log.Debugf("%s %s", method, u)
	resp, err := httpClient.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, remoteError(command, resp)
	}
	out, err := c.decode(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", command, err)
	}
	return out, nil
}

// The daemon reports failures as a JSON body carrying its own message.
func remoteError(command string, resp *http.Response) error {
	var e RemoteError
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return fmt.Errorf("%s: status %s: decoding error body: %w", command, resp.Status, err)
	}
	return &e
}
