package state

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

type NodeCfg struct {
	Id      NodeId
	LogPath string `yaml:"log_path,omitempty"` // if not empty, the node will also write its log to this file
}

type LinkCfg struct {
	A      NodeId `yaml:"a"`
	B      NodeId `yaml:"b"`
	Weight uint32 `yaml:"weight"`
}

func (l LinkCfg) Edge() Edge {
	return NewEdge(l.A, l.B)
}

func (l LinkCfg) String() string {
	return fmt.Sprintf("%d - %d : %d", l.A, l.B, l.Weight)
}

// TopologyCfg describes the simulated network: its nodes and weighted links.
type TopologyCfg struct {
	Nodes []NodeId
	Links []LinkCfg `yaml:",omitempty"`
	Graph []string  `yaml:",omitempty"` // compact link syntax, see ParseLinks. Lines must be quoted in YAML
}

// RunCfg represents the settings of a single simulation run
type RunCfg struct {
	LogPath       string        `yaml:"log_path,omitempty"`       // if not empty, every node also logs to this file
	Verbose       bool          `yaml:"verbose,omitempty"`        // log engine events
	Latency       time.Duration `yaml:"latency,omitempty"`        // base per-link delivery delay
	Jitter        time.Duration `yaml:"jitter,omitempty"`         // random extra delay on top of latency, order is still preserved
	DuplicateRate float64       `yaml:"duplicate_rate,omitempty"` // probability that a link delivers a frame twice
	Manual        bool          `yaml:"manual,omitempty"`
	Compressed    bool          `yaml:"compressed,omitempty"`
	ResultsPath   string        `yaml:"results_path,omitempty"` // if not empty, converged trees are appended to this file
}

/*
ParseLinks parses the compact link syntax. Each line describes one link:

	1 - 2 : 7 // link between node 1 and node 2 with weight 7

Blank lines and text after // are ignored. In a topology file each line is a
quoted YAML string, since ": " would otherwise start a mapping:

	graph:
	  - "1 - 2 : 7"
*/
func ParseLinks(graph []string) ([]LinkCfg, error) {
	links := make([]LinkCfg, 0, len(graph))
	for _, line := range graph {
		if idx := strings.Index(line, "//"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		spl := strings.Split(line, ":")
		if len(spl) != 2 {
			return nil, fmt.Errorf("invalid link: %s. link must contain one ':' followed by the weight", line)
		}
		ends := strings.Split(spl[0], "-")
		if len(ends) != 2 {
			return nil, fmt.Errorf("invalid link: %s. link must be of the form a - b : weight", line)
		}
		a, err := ParseNodeId(ends[0])
		if err != nil {
			return nil, fmt.Errorf("invalid link: %s: %w", line, err)
		}
		b, err := ParseNodeId(ends[1])
		if err != nil {
			return nil, fmt.Errorf("invalid link: %s: %w", line, err)
		}
		w, err := strconv.ParseUint(strings.TrimSpace(spl[1]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid link weight in %s: %w", line, err)
		}
		links = append(links, LinkCfg{A: a, B: b, Weight: uint32(w)})
	}
	return links, nil
}

// ExpandTopology folds the compact graph lines into Links
func ExpandTopology(cfg *TopologyCfg) error {
	links, err := ParseLinks(cfg.Graph)
	if err != nil {
		return err
	}
	cfg.Links = append(cfg.Links, links...)
	cfg.Graph = nil
	return nil
}

// GetNeighbours returns every link of node n in ascending weight order, oriented so that A == n
func (c *TopologyCfg) GetNeighbours(n NodeId) []LinkCfg {
	out := make([]LinkCfg, 0)
	for _, l := range c.Links {
		if l.A == n {
			out = append(out, l)
		} else if l.B == n {
			out = append(out, LinkCfg{A: n, B: l.A, Weight: l.Weight})
		}
	}
	slices.SortFunc(out, func(x, y LinkCfg) int {
		if c := cmp.Compare(x.Weight, y.Weight); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return out
}

func (c *TopologyCfg) Weight(a, b NodeId) (uint32, bool) {
	e := NewEdge(a, b)
	for _, l := range c.Links {
		if l.Edge() == e {
			return l.Weight, true
		}
	}
	return 0, false
}

func (c *TopologyCfg) HasNode(n NodeId) bool {
	return slices.Contains(c.Nodes, n)
}

// LoadTopology reads, expands and validates a topology file
func LoadTopology(path string) (*TopologyCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg TopologyCfg
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse topology %s: %w", path, err)
	}
	err = ExpandTopology(&cfg)
	if err != nil {
		return nil, err
	}
	err = TopologyValidator(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SaveTopology(path string, cfg *TopologyCfg) error {
	bytes, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0600)
}

func LoadRunCfg(path string) (*RunCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg RunCfg
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run config %s: %w", path, err)
	}
	err = RunCfgValidator(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
