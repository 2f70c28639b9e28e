package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ketama/internal/ring"
)

const (
	DefaultListenAddr = "127.0.0.1:7070"
	DefaultLogLevel   = "info"
)

// NodeSpec is a configured ring node.
type NodeSpec struct {
	ID     string `yaml:"id"`
	Weight int    `yaml:"weight"`
}

// UnmarshalYAML accepts either a bare id or an {id, weight} mapping.
// An omitted weight means 1.
func (n *NodeSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		n.ID = strings.TrimSpace(value.Value)
		n.Weight = 1
		return nil
	}

	var raw struct {
		ID     string `yaml:"id"`
		Weight *int   `yaml:"weight"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	n.ID = strings.TrimSpace(raw.ID)
	n.Weight = 1
	if raw.Weight != nil {
		n.Weight = *raw.Weight
	}
	return nil
}

// Config holds the ring configuration.
type Config struct {
	ListenAddr string     `yaml:"listen"`
	Replicas   int        `yaml:"replicas"`
	LogLevel   string     `yaml:"log_level"`
	Nodes      []NodeSpec `yaml:"nodes"`
}

// Default returns a configuration with defaults applied and no nodes.
func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		Replicas:   ring.DefaultReplicas,
		LogLevel:   DefaultLogLevel,
		Nodes:      []NodeSpec{},
	}
}

// Load reads a YAML config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseNodes parses a comma-separated node list in the format:
// "id1=weight1,id2=weight2,id3"
// The weight is optional and defaults to 1. Ids may contain ':'.
func ParseNodes(nodesStr string) ([]NodeSpec, error) {
	if strings.TrimSpace(nodesStr) == "" {
		return []NodeSpec{}, nil
	}

	parts := strings.Split(nodesStr, ",")
	nodes := make([]NodeSpec, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, weightStr, hasWeight := strings.Cut(part, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("%w: %s", ring.ErrInvalidNode, part)
		}

		weight := 1
		if hasWeight {
			w, err := strconv.Atoi(strings.TrimSpace(weightStr))
			if err != nil {
				return nil, fmt.Errorf("invalid weight in %s (expected id=weight): %w", part, err)
			}
			weight = w
		}

		nodes = append(nodes, NodeSpec{ID: id, Weight: weight})
	}

	return nodes, nil
}

// Validate checks node ids and weights and rejects duplicates.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: empty id in config", ring.ErrInvalidNode)
		}
		if n.Weight <= 0 {
			return fmt.Errorf("%w: node %s has weight %d", ring.ErrInvalidWeight, n.ID, n.Weight)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: %s", ring.ErrDuplicateNode, n.ID)
		}
		seen[n.ID] = true
	}
	if c.Replicas < 0 {
		return fmt.Errorf("replicas must not be negative: %d", c.Replicas)
	}
	return nil
}

// Weights converts the configured nodes into an id -> weight mapping.
func (c *Config) Weights() map[string]int {
	weights := make(map[string]int, len(c.Nodes))
	for _, n := range c.Nodes {
		weights[n.ID] = n.Weight
	}
	return weights
}

// BuildRing creates a ring holding the configured nodes in file order.
func (c *Config) BuildRing() (*ring.Ring, error) {
	nodes := make([]ring.Node, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		nodes = append(nodes, ring.Node{ID: n.ID, Weight: n.Weight})
	}
	return ring.New(c.Replicas, nodes...)
}
