// Package config loads and validates the immutable run configuration for
// the distributed k-NN hyperparameter search.
package config

import (
	"flag"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// Mode selects the coordination strategy driving the (k, f) sweep.
type Mode string

const (
	ModeHomogeneous  Mode = "homo"
	ModeHeterogeneous Mode = "hetero"
)

// Metric selects the distance kernel used throughout the sweep.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricManhattan Metric = "manhattan"
)

// Config holds every recognized field of spec.md §3, plus the ambient
// admin-surface settings. It is constructed once by LoadFromFile and never mutated
// afterward; every field is read-only to the rest of the program.
type Config struct {
	// Data sources.
	DBDataTraining   string `json:"dbDataTraining"`
	DBDataTest       string `json:"dbDataTest"`
	DBLabelsTraining string `json:"dbLabelsTraining"`
	DBLabelsTest     string `json:"dbLabelsTest"`
	MRMR             string `json:"MRMR"`

	// Shape.
	NTuples   int `json:"nTuples"`
	NFeatures int `json:"nFeatures"`
	NClasses  int `json:"nClasses"`

	// Search range.
	KMin        int `json:"kMin"`
	KMax        int `json:"kMax"`
	MaxFeatures int `json:"maxFeatures"`
	ChunkSize   int `json:"chunkSize"`

	// Behavior switches.
	Mode          Mode   `json:"mode"`
	Metric        Metric `json:"metric"`
	Normalize     bool   `json:"normalize"`
	SortingByMRMR bool   `json:"sortingByMRMR"`
	SavingEnergy  bool   `json:"savingEnergy"`

	// World shape for the simulated distributed runtime.
	WorldSize int `json:"worldSize"`

	// Ambient admin surface (additive; never affects sweep correctness).
	Admin AdminConfig `json:"admin"`

	// Energy oracle endpoint, used only when SavingEnergy is set.
	Energy EnergyConfig `json:"energy"`
}

// AdminConfig configures the optional REST/gRPC observability surface.
type AdminConfig struct {
	Enabled          bool   `json:"enabled"`
	Host             string `json:"host"`
	RESTPort         int    `json:"restPort"`
	GRPCPort         int    `json:"grpcPort"`
	AuthEnabled      bool   `json:"authEnabled"`
	JWTSecret        string `json:"jwtSecret"`
	RateLimitEnabled bool   `json:"rateLimitEnabled"`
	RateLimitPerSec  float64 `json:"rateLimitPerSec"`
	RateLimitBurst   int    `json:"rateLimitBurst"`
}

// EnergyConfig configures the pricing-oracle poller of C8.
type EnergyConfig struct {
	OracleURL      string  `json:"oracleURL"`
	RequestsPerSec float64 `json:"requestsPerSec"`
}

// Default returns a Config with conservative defaults for every field that
// spec.md does not otherwise mandate a value for.
func Default() *Config {
	return &Config{
		KMin:        1,
		KMax:        1,
		Mode:        ModeHomogeneous,
		Metric:      MetricEuclidean,
		WorldSize:   1,
		ChunkSize:   1,
		Admin: AdminConfig{
			Host:             "0.0.0.0",
			RESTPort:         8080,
			GRPCPort:         50061,
			RateLimitPerSec:  5,
			RateLimitBurst:   10,
		},
		Energy: EnergyConfig{
			OracleURL:      "https://api.preciodelaluz.org/v1/prices/now?zone=PCB",
			RequestsPerSec: 1,
		},
	}
}

// LoadFromFile decodes a JSON configuration file into a fresh Config. Fields
// absent from the file keep Default's values.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}
	return cfg, nil
}

// Flags holds the parsed command-line arguments recognized by the CLI:
// -h, -conf and -mode, per spec.md §6.
type Flags struct {
	Help       bool
	ConfigPath string
	ModeOverride string
}

// ParseFlags parses os.Args[1:] (or the given argv) into Flags.
func ParseFlags(argv []string) (*Flags, error) {
	fs := flag.NewFlagSet("hpknn", flag.ContinueOnError)
	help := fs.Bool("h", false, "Display usage instructions.")
	conf := fs.String("conf", "", "Name of the file containing the JSON configuration file.")
	mode := fs.String("mode", "", "Coordination strategy override: homo|hetero.")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	return &Flags{Help: *help, ConfigPath: *conf, ModeOverride: *mode}, nil
}

// Usage prints the CLI usage text in the register of the original
// "mpirun [MPI OPTIONS] ./bin/hpknn [ARGS]" help banner.
func Usage(w *os.File) {
	fmt.Fprintln(w, "hpknn is a parallel and distributed k-NN hyperparameter search for energy-aware heterogeneous platforms")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: ./hpknn [ARGS]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  -h              Display usage instructions.")
	fmt.Fprintln(w, "  -conf <path>    Name of the file containing the JSON configuration file.")
	fmt.Fprintln(w, "  -mode <mode>    Override the configured mode: homo or hetero.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  ./hpknn -h")
	fmt.Fprintln(w, `  ./hpknn -conf "config.json"`)
}

// Validate enforces the error taxonomy of spec.md §7. It returns the first
// violation found.
func (c *Config) Validate() error {
	if c.DBDataTraining == "" || c.DBDataTest == "" || c.DBLabelsTraining == "" || c.DBLabelsTest == "" {
		return fmt.Errorf("malformed config: dbDataTraining, dbDataTest, dbLabelsTraining and dbLabelsTest are required")
	}
	if c.SortingByMRMR && c.MRMR == "" {
		return fmt.Errorf("malformed config: sortingByMRMR is set but MRMR path is empty")
	}
	if c.NTuples <= 0 || c.NFeatures <= 0 || c.NClasses <= 0 {
		return fmt.Errorf("malformed config: nTuples, nFeatures and nClasses must be positive")
	}
	if c.KMin <= 0 || c.KMax < c.KMin {
		return fmt.Errorf("malformed config: require 0 < kMin <= kMax")
	}
	if c.KMax > c.NTuples {
		return fmt.Errorf("malformed config: kMax (%d) exceeds nTuples (%d)", c.KMax, c.NTuples)
	}
	if c.MaxFeatures <= 0 || c.MaxFeatures > c.NFeatures {
		return fmt.Errorf("malformed config: maxFeatures must be in (0, nFeatures]")
	}

	switch c.Mode {
	case ModeHomogeneous, ModeHeterogeneous:
	default:
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModeHomogeneous, ModeHeterogeneous)
	}

	switch c.Metric {
	case MetricEuclidean, MetricManhattan:
	default:
		return fmt.Errorf("invalid metric %q: must be %q or %q", c.Metric, MetricEuclidean, MetricManhattan)
	}

	if c.WorldSize < 1 {
		return fmt.Errorf("malformed config: worldSize must be >= 1")
	}

	if c.Mode == ModeHomogeneous {
		if (c.NTuples*c.NFeatures)%c.WorldSize != 0 {
			return fmt.Errorf("nTuples*nFeatures (%d) not divisible by world size (%d) in homo mode", c.NTuples*c.NFeatures, c.WorldSize)
		}
	}

	if c.Mode == ModeHeterogeneous {
		if c.WorldSize < 2 {
			return fmt.Errorf("world size < 2 in hetero mode: no worker would exist")
		}
		if c.ChunkSize <= 0 || c.MaxFeatures%c.ChunkSize != 0 {
			return fmt.Errorf("maxFeatures (%d) not divisible by chunkSize (%d) in hetero mode", c.MaxFeatures, c.ChunkSize)
		}
	}

	if c.Admin.Enabled && c.Admin.AuthEnabled && c.Admin.JWTSecret == "" {
		return fmt.Errorf("malformed config: admin auth enabled but jwtSecret is empty")
	}

	return nil
}
