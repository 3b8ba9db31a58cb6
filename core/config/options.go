package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adalundhe/labelgraph/core/graph"
	"github.com/adalundhe/labelgraph/core/solve"
)

// Options selects the connector/solver pair and the orchestration
// thresholds. Values load from YAML with environment overrides on top;
// a missing file leaves the defaults in place.
type Options struct {
	Connector ConnectorOptions `yaml:"connector"`
	Solver    SolverOptions    `yaml:"solver"`
	Filter    FilterOptions    `yaml:"filter"`
	Streaming StreamingOptions `yaml:"streaming"`
	Selection SelectionOptions `yaml:"selection"`
}

type ConnectorOptions struct {
	Strategy string  `yaml:"strategy"`
	K        int     `yaml:"k"`
	Epsilon  float64 `yaml:"epsilon"`
	Workers  int     `yaml:"workers"`
	MemoSize int     `yaml:"memo_size"`
}

type SolverOptions struct {
	Algorithm  string  `yaml:"algorithm"`
	Alpha      float64 `yaml:"alpha"`
	Iterations int     `yaml:"iterations"`
	Tolerance  float64 `yaml:"tolerance"`
}

type FilterOptions struct {
	// MinNodeSize drops cached representatives with fewer evidence
	// literals when assembling the labeled set.
	MinNodeSize int `yaml:"min_node_size"`

	// MinOccurrence drops cached patterns seen fewer times.
	MinOccurrence int `yaml:"min_occurrence"`
}

type StreamingOptions struct {
	// Memory bounds the retained window of recent unlabeled nodes.
	Memory int `yaml:"memory"`
}

type SelectionOptions struct {
	// Enabled turns on the feature-selection collaborator pass.
	Enabled bool `yaml:"enabled"`

	// Augment enriches a single-polarity positive labeled set with
	// forced-negative value splits.
	Augment bool `yaml:"augment"`
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() *Options {
	connector := graph.DefaultConfig()
	solver := solve.DefaultConfig()
	return &Options{
		Connector: ConnectorOptions{
			Strategy: connector.Strategy.String(),
			K:        connector.K,
			Epsilon:  connector.Epsilon,
			MemoSize: connector.MemoSize,
		},
		Solver: SolverOptions{
			Algorithm:  solver.Algorithm.String(),
			Alpha:      solver.Alpha,
			Iterations: solver.Iterations,
			Tolerance:  solver.Tolerance,
		},
		Filter: FilterOptions{
			MinNodeSize:   0,
			MinOccurrence: 1,
		},
		Streaming: StreamingOptions{
			Memory: 64,
		},
	}
}

// LoadOptions reads YAML options from path on top of the defaults and
// applies environment overrides. A missing file is not an error.
func LoadOptions(path string) (*Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read options: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, opts); err != nil {
			return nil, fmt.Errorf("parse options: %w", err)
		}
	}

	opts.applyEnvironment()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) applyEnvironment() {
	if v := os.Getenv("LABELGRAPH_CONNECTOR_STRATEGY"); v != "" {
		o.Connector.Strategy = v
	}
	if v := os.Getenv("LABELGRAPH_CONNECTOR_K"); v != "" {
		if n, err := parseInt(v); err == nil {
			o.Connector.K = n
		}
	}
	if v := os.Getenv("LABELGRAPH_CONNECTOR_EPSILON"); v != "" {
		if f, err := parseFloat(v); err == nil {
			o.Connector.Epsilon = f
		}
	}
	if v := os.Getenv("LABELGRAPH_SOLVER_ALGORITHM"); v != "" {
		o.Solver.Algorithm = v
	}
	if v := os.Getenv("LABELGRAPH_SOLVER_ITERATIONS"); v != "" {
		if n, err := parseInt(v); err == nil {
			o.Solver.Iterations = n
		}
	}
	if v := os.Getenv("LABELGRAPH_SOLVER_ALPHA"); v != "" {
		if f, err := parseFloat(v); err == nil {
			o.Solver.Alpha = f
		}
	}
	if v := os.Getenv("LABELGRAPH_SOLVER_TOLERANCE"); v != "" {
		if f, err := parseFloat(v); err == nil {
			o.Solver.Tolerance = f
		}
	}
	if v := os.Getenv("LABELGRAPH_STREAMING_MEMORY"); v != "" {
		if n, err := parseInt(v); err == nil {
			o.Streaming.Memory = n
		}
	}
}

// Validate checks that the strategy and algorithm names resolve.
func (o *Options) Validate() error {
	if _, err := graph.ParseStrategy(o.Connector.Strategy); err != nil {
		return fmt.Errorf("connector: %w", err)
	}
	if _, err := solve.ParseAlgorithm(o.Solver.Algorithm); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	return nil
}

// ConnectorConfig resolves the connector section into a graph.Config.
func (o *Options) ConnectorConfig() (graph.Config, error) {
	strategy, err := graph.ParseStrategy(o.Connector.Strategy)
	if err != nil {
		return graph.Config{}, err
	}
	return graph.Config{
		Strategy: strategy,
		K:        o.Connector.K,
		Epsilon:  o.Connector.Epsilon,
		Workers:  o.Connector.Workers,
		MemoSize: o.Connector.MemoSize,
	}, nil
}

// SolverConfig resolves the solver section into a solve.Config.
func (o *Options) SolverConfig() (solve.Config, error) {
	algorithm, err := solve.ParseAlgorithm(o.Solver.Algorithm)
	if err != nil {
		return solve.Config{}, err
	}
	return solve.Config{
		Algorithm:  algorithm,
		Alpha:      o.Solver.Alpha,
		Iterations: o.Solver.Iterations,
		Tolerance:  o.Solver.Tolerance,
	}, nil
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err
}
