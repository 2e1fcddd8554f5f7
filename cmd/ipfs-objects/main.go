// ipfs-objects is a command line front for the object store API: it
// commits drafts, fetches and inspects stored objects, manages pins and
// publishes names.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/blang/semver/v4"
	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	ipfs "github.com/Stebalien/go-ipfs-objects"
)

var log = logging.Logger("ipfs-objects")

var (
	api     = flag.String("api", "", "api endpoint (url or multiaddr; default: the local daemon)")
	timeout = flag.Duration("timeout", time.Minute, "give up on any command after this long")
	wait    = flag.Bool("wait", false, "wait for the api to come up instead of failing")
	verbose = flag.Bool("v", false, "verbose logging")
)

// Oldest daemon release the object surface is known to work against.
var minDaemonVersion = semver.MustParse("0.4.0")

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s [flags] <command> [args]

commands:
  put [file]               commit a draft carrying the file (or stdin) as data
  get <path>               fetch an object and print its summary
  data <path>              fetch an object and write its data to stdout
  stat <path>              print the daemon's stats for an object
  pin [-r] <path>...       pin objects
  unpin [-r] <path>...     unpin objects
  resolve [-r] <path>      resolve a path
  lookup <path>            resolve a path to a reference without fetching
  publish [-for d] <path>  point this node's name at an object
  version                  print the daemon version

flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if *verbose {
		logging.SetDebugLogging()
	}
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", os.Args[0], err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	if *api != "" {
		if err := ipfs.SetAPIEndpoint(*api); err != nil {
			return err
		}
	} else if ep, err := ipfs.LocalAPIEndpoint(); err == nil {
		if err := ipfs.SetAPIEndpoint(ep); err != nil {
			return err
		}
	} else if !errors.Is(err, ipfs.ErrApiNotFound) {
		log.Warnf("reading local api file: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *wait {
		if err := ipfs.WaitForEndpoint(ctx); err != nil {
			return fmt.Errorf("api at %s never came up: %w", ipfs.APIEndpoint(), err)
		}
	}

	switch command {
	case "put":
		return cmdPut(ctx, args)
	case "get":
		return cmdGet(ctx, args)
	case "data":
		return cmdData(ctx, args)
	case "stat":
		return cmdStat(ctx, args)
	case "pin":
		return cmdPin(ctx, args, true)
	case "unpin":
		return cmdPin(ctx, args, false)
	case "resolve":
		return cmdResolve(ctx, args)
	case "lookup":
		return cmdLookup(ctx, args)
	case "publish":
		return cmdPublish(ctx, args)
	case "version":
		return cmdVersion(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdPut(ctx context.Context, args []string) error {
	in := os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	committed, err := ipfs.ObjectWithData(data).Commit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", committed.Reference(), humanize.IBytes(committed.Size()))
	return nil
}

func cmdGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("get wants exactly one path")
	}
	obj, err := ipfs.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", obj.Reference())
	fmt.Printf("  data: %s\n", humanize.IBytes(uint64(len(obj.Data()))))
	fmt.Printf("  cumulative: %s\n", humanize.IBytes(obj.Size()))
	for _, l := range obj.Links() {
		fmt.Printf("  link %s\t%s\t%s\n", l.Name, l.Object.Hash(), humanize.IBytes(l.Object.Size()))
	}
	return nil
}

func cmdData(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("data wants exactly one path")
	}
	obj, err := ipfs.Get(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(obj.Data())
	return err
}

func cmdStat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("stat wants exactly one path")
	}
	st, err := ipfs.Stat(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s\n  links: %d\n  data: %s\n  cumulative: %s\n",
		st.Hash, st.NumLinks,
		humanize.IBytes(uint64(st.DataSize)), humanize.IBytes(st.CumulativeSize))
	return nil
}

// cmdPin looks every path up and then pins or unpins the references.
// Pinning stops at the first failure; unpinning keeps going and reports
// everything that went wrong.
func cmdPin(ctx context.Context, args []string, pin bool) error {
	name := "pin"
	if !pin {
		name = "unpin"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	recursive := fs.Bool("r", true, "recurse into linked objects")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("nothing to %s", name)
	}

	refs := make([]ipfs.Reference, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			ref, err := ipfs.Lookup(gctx, p)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if pin {
		g, gctx := errgroup.WithContext(ctx)
		for i, ref := range refs {
			g.Go(func() error {
				if err := ref.Pin(gctx, *recursive); err != nil {
					return fmt.Errorf("%s: %w", paths[i], err)
				}
				fmt.Printf("pinned %s\n", ref)
				return nil
			})
		}
		return g.Wait()
	}

	var errs error
	for i, ref := range refs {
		if err := ref.Unpin(ctx, *recursive); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", paths[i], err))
			continue
		}
		fmt.Printf("unpinned %s\n", ref)
	}
	return errs
}

func cmdResolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	recursive := fs.Bool("r", true, "follow ipns chains all the way down")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("resolve wants exactly one path")
	}
	p, err := ipfs.Resolve(ctx, fs.Arg(0), *recursive)
	if err != nil {
		return err
	}
	fmt.Println(p)
	return nil
}

func cmdLookup(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("lookup wants exactly one path")
	}
	ref, err := ipfs.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", ref, humanize.IBytes(ref.Size()))
	return nil
}

func cmdPublish(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	lifetime := fs.Duration("for", ipfs.DefaultPublishLifetime, "how long the record lives")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("publish wants exactly one path")
	}
	obj, err := ipfs.Get(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if err := ipfs.PublishFor(ctx, obj, *lifetime); err != nil {
		return err
	}
	fmt.Printf("published %s for %s\n", obj.Reference(), *lifetime)
	return nil
}

func cmdVersion(ctx context.Context) error {
	v, err := ipfs.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (repo %s, %s, %s)\n", v.Version, v.Repo, v.System, v.Golang)
	if sv, err := v.Semver(); err != nil {
		log.Warnf("daemon reports unparseable version %q: %s", v.Version, err)
	} else if sv.LT(minDaemonVersion) {
		log.Warnf("daemon %s is older than the oldest tested release %s", sv, minDaemonVersion)
	}
	return nil
}
