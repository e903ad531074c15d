// Command kvrdb-server is the process entry point: argument parsing,
// store setup, and wiring the listener to the dispatcher and command
// catalogue. Flag parsing follows dittofs/moby-moby/k3s-io-k3s's own use
// of github.com/spf13/pflag for POSIX/GNU-style flags; -h/-?/--version
// are special-cased ahead of pflag.Parse because the banner output and
// the -? alias don't map onto pflag's own --help machinery.
package main

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/pflag"

	"github.com/raunakns/kvrdb"
	"github.com/raunakns/kvrdb/internal/handlers"
	"github.com/raunakns/kvrdb/internal/logging"
	"github.com/raunakns/kvrdb/internal/store"
)

const serverVersion = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if code, handled := handleBannerFlags(argv); handled {
		return code
	}

	fs := pflag.NewFlagSet("kvrdb-server", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dataDir := fs.StringP("data-dir", "d", "data", "data directory")
	port := fs.IntP("port", "p", 5555, "TCP port")
	sync := fs.Bool("sync", false, "enable synchronous writes")
	inmem := fs.Bool("inmem", false, "open the store in memory")
	readonly := fs.Bool("readonly", false, "open the store read-only")
	keepalive := fs.Int("keepalive", 60, "TCP keepalive in seconds (0 disables)")

	if err := fs.Parse(argv); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unknown option argument: %q\n", fs.Arg(0))
		return 1
	}
	if *keepalive < 0 || *keepalive > math.MaxInt32 {
		fmt.Fprintf(os.Stderr, "invalid option %q for argument: \"--keepalive\"\n", fmt.Sprint(*keepalive))
		return 1
	}

	cfg := Config{
		DataDir:   *dataDir,
		Port:      *port,
		Sync:      *sync,
		InMemory:  *inmem,
		ReadOnly:  *readonly,
		KeepAlive: time.Duration(*keepalive) * time.Second,
	}

	return serve(cfg)
}

// handleBannerFlags implements -h/--help/-?/--version: printed before
// any other flag is consulted, exiting 0 without starting the server.
func handleBannerFlags(argv []string) (code int, handled bool) {
	for _, a := range argv {
		switch a {
		case "-h", "--help", "-?":
			fmt.Println(banner())
			fmt.Println("usage: kvrdb-server [-d data_path] [-p tcp_port] [--sync] [--readonly] [--inmem] [--keepalive seconds]")
			return 0, true
		case "--version":
			fmt.Println(banner())
			return 0, true
		}
	}
	return 0, false
}

func banner() string {
	badgerVersion := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == "github.com/dgraph-io/badger/v4" {
				badgerVersion = dep.Version
				break
			}
		}
	}
	return fmt.Sprintf("Badger version %s, kvrdb server version %s", badgerVersion, serverVersion)
}

// Config is the immutable, startup-built configuration, passed by value
// to serve, which hands its fields to the store, dispatcher and listener,
// rather than relying on process-wide mutable globals.
type Config struct {
	DataDir   string
	Port      int
	Sync      bool
	InMemory  bool
	ReadOnly  bool
	KeepAlive time.Duration
}

func serve(cfg Config) int {
	mode := store.ModeReadWrite
	switch {
	case cfg.InMemory:
		mode = store.ModeInMemory
	case cfg.ReadOnly:
		mode = store.ModeReadOnly
	}

	s, err := store.Open(cfg.DataDir, mode, cfg.Sync)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer s.Close()

	logging.Printf('#', "Server started, %s", banner())

	cat := handlers.New(s)

	poolSize := 1024
	dispatcher, err := kvrdb.NewDispatcher(cat.Handle, cfg.InMemory, poolSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer dispatcher.Release()

	listenerCfg := kvrdb.ListenerConfig{
		Addr:      fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		KeepAlive: cfg.KeepAlive,
	}

	logging.Printf('*', "The server is now ready to accept connections on port %d", cfg.Port)
	if err := kvrdb.Serve(listenerCfg, dispatcher); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}
