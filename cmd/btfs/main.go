// btfs mounts a single torrent as a read-only filesystem, fetching
// file contents from the swarm on demand as they are read.
//
// Usage:
//
//	btfs [flags] <metadata> <mountpoint>
//
// metadata is either a path to a .torrent file or a magnet: URI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	fusemount "github.com/gobtfs/btfs/lib/swarmfs/fuse"
	"github.com/gobtfs/btfs/lib/process"
	"github.com/gobtfs/btfs/lib/swarmengine"
	"github.com/gobtfs/btfs/lib/swarmfs"
	"github.com/gobtfs/btfs/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// defaultRateLimit is the upload and download rate ceiling applied
// when the corresponding flag is not given: 5 Mbit/s expressed in
// bytes/sec, matching the original's setup() default.
const defaultRateLimit = 5 * 1000 * 1000 / 8

type arguments struct {
	target          string
	maxUploadRate   float64
	maxDownloadRate float64
	allowOther      bool
	showVersion     bool

	metadata   string
	mountpoint string
}

func parseArguments(args []string) (arguments, error) {
	var a arguments

	flagSet := pflag.NewFlagSet("btfs", pflag.ContinueOnError)
	flagSet.StringVar(&a.target, "target", "", "parent directory for downloaded data (default: $HOME/btfs or /tmp/btfs)")
	flagSet.Float64Var(&a.maxUploadRate, "max-upload-rate", defaultRateLimit, "upload rate limit in bytes/sec (0 disables the limit)")
	flagSet.Float64Var(&a.maxDownloadRate, "max-download-rate", defaultRateLimit, "download rate limit in bytes/sec (0 disables the limit)")
	flagSet.BoolVar(&a.allowOther, "allow-other", false, "allow other users to access the mount (requires user_allow_other in /etc/fuse.conf)")
	flagSet.BoolVar(&a.showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		return arguments{}, err
	}

	if a.showVersion {
		return a, nil
	}

	positional := flagSet.Args()
	if len(positional) != 2 {
		return arguments{}, fmt.Errorf("usage: btfs [flags] <metadata> <mountpoint>")
	}
	a.metadata = positional[0]
	a.mountpoint = positional[1]

	return a, nil
}

func run() error {
	args, err := parseArguments(os.Args[1:])
	if err != nil {
		return err
	}
	if args.showVersion {
		fmt.Println(version.Full())
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if strings.HasPrefix(args.metadata, "http:") || strings.HasPrefix(args.metadata, "https:") {
		return fmt.Errorf("no HTTP or HTTPS support for metadata: %s", args.metadata)
	}

	dataDir, err := populateTarget(args.target)
	if err != nil {
		return fmt.Errorf("preparing target directory: %w", err)
	}

	session, err := swarmengine.NewSession(swarmengine.Options{
		DataDir:         dataDir,
		MaxUploadRate:   args.maxUploadRate,
		MaxDownloadRate: args.maxDownloadRate,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("starting swarm session: %w", err)
	}

	if swarmengine.IsMagnet(args.metadata) {
		if err := session.AddMagnet(args.metadata); err != nil {
			return err
		}
	} else {
		abs, err := filepath.Abs(args.metadata)
		if err != nil {
			return fmt.Errorf("resolving metadata path %s: %w", args.metadata, err)
		}
		if err := session.AddFromFile(abs); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("waiting for torrent metadata")
	if err := session.WaitMetadata(ctx); err != nil {
		session.Close()
		return fmt.Errorf("waiting for torrent metadata: %w", err)
	}

	index := session.BuildIndex()
	core := swarmfs.NewCore(index, session)
	session.Attach(core)
	session.Start(ctx)

	server, err := fusemount.Mount(fusemount.Options{
		Mountpoint: args.mountpoint,
		Core:       core,
		AllowOther: args.allowOther,
		Logger:     logger,
	})
	if err != nil {
		session.Stop()
		session.Close()
		return fmt.Errorf("mounting filesystem: %w", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Info("signal received, unmounting")
		server.Unmount()
	}()

	server.Wait()

	session.Stop()
	return session.Close()
}

// populateTarget ensures the parent directory for downloaded data
// exists and returns a fresh temporary subdirectory within it. target
// overrides the default parent ($HOME/btfs, falling back to
// /tmp/btfs) — the original implementation's commented-out
// "--target DIRECTORY?" left as a TODO; here it is implemented.
func populateTarget(target string) (string, error) {
	parent := target
	if parent == "" {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			parent = filepath.Join(home, "btfs")
		} else {
			parent = filepath.Join("/tmp", "btfs")
		}
	}

	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", parent, err)
	}

	dir, err := os.MkdirTemp(parent, "btfs-")
	if err != nil {
		return "", fmt.Errorf("creating temporary directory under %s: %w", parent, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir, nil
	}
	return abs, nil
}
