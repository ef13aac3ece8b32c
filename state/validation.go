package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func LinkValidator(l LinkCfg) error {
	if l.A < 0 || l.B < 0 {
		return fmt.Errorf("link %s has a negative node id", l)
	}
	if l.A == l.B {
		return fmt.Errorf("link %s is a self loop", l)
	}
	if l.Weight == 0 {
		return fmt.Errorf("link %s must have a positive weight", l)
	}
	return nil
}

func TopologyValidator(cfg *TopologyCfg) error {
	nodes := make(map[NodeId]struct{})
	for _, n := range cfg.Nodes {
		if n < 0 {
			return fmt.Errorf("node id %d must not be negative", n)
		}
		if _, ok := nodes[n]; ok {
			return fmt.Errorf("duplicate node found: %d", n)
		}
		nodes[n] = struct{}{}
	}
	edges := make(map[Edge]struct{})
	for _, l := range cfg.Links {
		if err := LinkValidator(l); err != nil {
			return err
		}
		if _, ok := edges[l.Edge()]; ok {
			return fmt.Errorf("duplicate link found: %d, %d", l.A, l.B)
		}
		if _, ok := nodes[l.A]; !ok {
			return fmt.Errorf("node %d not defined", l.A)
		}
		if _, ok := nodes[l.B]; !ok {
			return fmt.Errorf("node %d not defined", l.B)
		}
		edges[l.Edge()] = struct{}{}
	}
	return nil
}

func RunCfgValidator(cfg *RunCfg) error {
	if cfg.Latency < 0 || cfg.Jitter < 0 {
		return fmt.Errorf("latency and jitter must not be negative")
	}
	if cfg.DuplicateRate < 0 || cfg.DuplicateRate >= 1 {
		return fmt.Errorf("duplicate_rate %v must be in [0, 1)", cfg.DuplicateRate)
	}
	if cfg.LogPath != "" {
		if err := PathValidator(cfg.LogPath); err != nil {
			return fmt.Errorf("invalid log_path: %w", err)
		}
	}
	if cfg.ResultsPath != "" {
		if err := PathValidator(cfg.ResultsPath); err != nil {
			return fmt.Errorf("invalid results_path: %w", err)
		}
	}
	return nil
}
