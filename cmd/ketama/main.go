package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"ketama/internal/config"
	"ketama/internal/ring"
	"ketama/internal/server"
	"ketama/internal/shard"
)

type options struct {
	ConfigPath string
	Nodes      string
	Replicas   int
	ListenAddr string
	ServerAddr string
	LogLevel   string
	Keys       int
	Remove     string
	Add        string
}

func main() {
	opts := parseFlags()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// The shell may talk to a remote server and needs no local ring.
	if args[0] == "shell" && opts.ServerAddr != "" {
		client, err := server.Dial(opts.ServerAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect")
		}
		defer client.Close()
		runShell(client, logger)
		return
	}

	r, err := cfg.BuildRing()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build ring")
	}
	logger.Debug().Int("nodes", r.NodeCount()).Int("points", r.Len()).Msg("Ring built")

	switch args[0] {
	case "lookup":
		err = lookup(r, args[1:])
	case "nodes":
		printNodes(r)
	case "serve":
		serve(cfg.ListenAddr, r, logger)
	case "shell":
		runShell(localRing{r}, logger)
	case "simulate":
		err = simulate(r, opts, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Command failed")
	}
}

func parseFlags() *options {
	opts := &options{}

	flag.StringVar(&opts.ConfigPath, "config", "", "YAML config file")
	flag.StringVar(&opts.Nodes, "nodes", "", "Comma-separated nodes: id=weight,id2,...")
	flag.IntVar(&opts.Replicas, "replicas", 0, "Digests per unit of weight (default 10)")
	flag.StringVar(&opts.ListenAddr, "listen", "", "gRPC listen address for serve")
	flag.StringVar(&opts.ServerAddr, "addr", "", "Ring server address for shell")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.IntVar(&opts.Keys, "keys", 10000, "Number of keys for simulate")
	flag.StringVar(&opts.Remove, "remove", "", "Comma-separated node ids to remove in simulate")
	flag.StringVar(&opts.Add, "add", "", "Nodes to add in simulate: id=weight,...")

	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: ketama [flags] lookup KEY... | nodes | serve | shell | simulate")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opts
}

// loadConfig merges the config file with command line overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.Nodes != "" {
		nodes, err := config.ParseNodes(opts.Nodes)
		if err != nil {
			return nil, err
		}
		cfg.Nodes = nodes
	}
	if opts.Replicas > 0 {
		cfg.Replicas = opts.Replicas
	}
	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	return cfg, cfg.Validate()
}

func lookup(r *ring.Ring, keys []string) error {
	for _, key := range keys {
		node, err := r.GetNode(key)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", key, node)
	}
	return nil
}

func printNodes(r *ring.Ring) {
	weights := r.Weights()
	points := r.PointCounts()
	shares := r.Shares()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tWEIGHT\tPOINTS\tSHARE")
	for _, id := range r.Nodes() {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f%%\n", id, weights[id], points[id], shares[id]*100)
	}
	w.Flush()
}

func serve(listenAddr string, r *ring.Ring, logger zerolog.Logger) {
	srv := server.NewServer(listenAddr, r, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, os.Interrupt, syscall.SIGTERM)
	<-terminate

	logger.Info().Msg("Shutting down server")
	srv.Stop()
}

// simulate fills a router with keys, applies a membership change and
// reports how many keys moved.
func simulate(r *ring.Ring, opts *options, logger zerolog.Logger) error {
	rt := shard.NewRouter(r, logger)
	for i := 0; i < opts.Keys; i++ {
		key := fmt.Sprintf("key-%d", i)
		if _, err := rt.Put(key, []byte(key), 0); err != nil {
			return err
		}
	}
	printCounts("before", rt.Counts())

	if opts.Add != "" {
		specs, err := config.ParseNodes(opts.Add)
		if err != nil {
			return err
		}
		nodes := make(map[string]int, len(specs))
		for _, s := range specs {
			nodes[s.ID] = s.Weight
		}
		stats, err := rt.AddNodes(nodes)
		if err != nil {
			return err
		}
		fmt.Printf("add %s: moved %d of %d keys (%.2f%%)\n", opts.Add, stats.Moved, stats.Scanned, stats.MovedFraction()*100)
	}

	if opts.Remove != "" {
		ids := strings.Split(opts.Remove, ",")
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
		stats, err := rt.RemoveNodes(ids...)
		if err != nil {
			return err
		}
		fmt.Printf("remove %s: moved %d of %d keys (%.2f%%)\n", opts.Remove, stats.Moved, stats.Scanned, stats.MovedFraction()*100)
	}

	printCounts("after", rt.Counts())
	return nil
}

func printCounts(label string, counts map[string]int) {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	ring.SortIDs(ids)

	fmt.Printf("%s:\n", label)
	for _, id := range ids {
		fmt.Printf("  %s\t%d\n", id, counts[id])
	}
}
