// Command ivfshard-node is a demo driver for a single cluster node hosting
// one empty ivfshard shard (shard 0) and serving it over
// transport.ListenAndServe.
// It is not part of the library's public contract: flags and exit codes may
// change without a major version bump.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-ini/ini"
	"github.com/google/uuid"

	"github.com/hupe1980/ivfshard/ivf"
	"github.com/hupe1980/ivfshard/transport"
)

type config struct {
	dimension int
	indexType string
	nodeID    string
	address   string
	port      int
	seedNodes []string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("ivfshard-node", flag.ContinueOnError)
	dimension := fs.Int("dimension", 128, "vector dimension this node's shards hold")
	indexType := fs.String("index-type", "ivf", "index family served by this node (currently only \"ivf\")")
	nodeID := fs.String("node-id", "", "stable identifier for this node; defaults to a random UUID")
	address := fs.String("address", "", "address to bind the shard RPC listener to (default 127.0.0.1)")
	port := fs.Int("port", 0, "port to bind the shard RPC listener to (default 7070)")
	seedNodes := fs.String("seed-nodes", "", "comma-separated addresses of peer nodes to join")
	clusterConfig := fs.String("cluster-config", "", "INI file providing node_id, address, port, seed_nodes as an alternative to flags")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config{
		dimension: *dimension,
		indexType: *indexType,
		nodeID:    *nodeID,
		address:   *address,
		port:      *port,
	}
	if *seedNodes != "" {
		cfg.seedNodes = strings.Split(*seedNodes, ",")
	}

	if *clusterConfig != "" {
		if err := applyClusterConfig(*clusterConfig, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "ivfshard-node: %v\n", err)
			return 1
		}
	}

	if cfg.nodeID == "" {
		cfg.nodeID = uuid.NewString()
	}
	if cfg.address == "" {
		cfg.address = "127.0.0.1"
	}
	if cfg.port == 0 {
		cfg.port = 7070
	}
	if cfg.dimension <= 0 {
		fmt.Fprintln(os.Stderr, "ivfshard-node: --dimension must be positive")
		return 1
	}

	addr := fmt.Sprintf("%s:%d", cfg.address, cfg.port)
	fmt.Printf("ivfshard-node: node=%s type=%s dim=%s listening on %s\n",
		cfg.nodeID, cfg.indexType, humanize.Comma(int64(cfg.dimension)), addr)
	if len(cfg.seedNodes) > 0 {
		fmt.Printf("ivfshard-node: seed nodes: %s\n", strings.Join(cfg.seedNodes, ", "))
	}

	shard := ivf.NewShard(0, cfg.nodeID, cfg.dimension)
	if err := transport.ListenAndServe(addr, shard); err != nil {
		fmt.Fprintf(os.Stderr, "ivfshard-node: %v\n", err)
		return 1
	}
	return 0
}

// applyClusterConfig reads path as an INI file and fills in node_id,
// address, port and seed_nodes where the matching flag was left at its
// default, giving explicit flags priority over the file. Dimension and
// index type come from flags only.
func applyClusterConfig(path string, cfg *config) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load cluster config %q: %w", path, err)
	}

	sec := f.Section("")
	if cfg.nodeID == "" {
		cfg.nodeID = sec.Key("node_id").String()
	}
	if cfg.address == "" {
		cfg.address = sec.Key("address").String()
	}
	if cfg.port == 0 {
		cfg.port = sec.Key("port").MustInt(0)
	}
	if len(cfg.seedNodes) == 0 {
		if seeds := sec.Key("seed_nodes").String(); seeds != "" {
			cfg.seedNodes = strings.Split(seeds, ",")
		}
	}
	return nil
}
