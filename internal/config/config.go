package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds every stage setting. Values come from built-in defaults, an
// optional TOML file, then environment variables, in that order.
type Config struct {
	Catalog  CatalogConfig  `toml:"catalog"`
	Join     JoinConfig     `toml:"join"`
	Boundary BoundaryConfig `toml:"boundary"`
	Train    TrainConfig    `toml:"train"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Kafka    KafkaConfig    `toml:"kafka"`
}

type CatalogConfig struct {
	Path             string `toml:"path"`
	VirginSheet      string `toml:"virgin_sheet"`
	QuasiVirginSheet string `toml:"quasi_virgin_sheet"`
	CleanedPath      string `toml:"cleaned_path"`
}

// Sheets returns the catalog sheet names in concatenation order.
func (c CatalogConfig) Sheets() []string {
	return []string{c.VirginSheet, c.QuasiVirginSheet}
}

type JoinConfig struct {
	TreeCoverRaster string   `toml:"treecover_raster"`
	TreeCoverBand   int      `toml:"treecover_band"`
	LossYearRaster  string   `toml:"lossyear_raster"`
	LossYearBand    int      `toml:"lossyear_band"`
	Counties        []string `toml:"counties"`
	JoinedPath      string   `toml:"joined_path"`
}

// BoundaryConfig selects administrative units from a county boundary layer.
type BoundaryConfig struct {
	Path      string   `toml:"path"`
	Attribute string   `toml:"attribute"`
	Values    []string `toml:"values"`
	Output    string   `toml:"output"`
}

type TrainConfig struct {
	Seed         uint64  `toml:"seed"`
	TestFraction float64 `toml:"test_fraction"`
	Trees        int     `toml:"trees"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig names a node-exporter textfile to write after each command.
// An empty path disables metrics output.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// Defaults returns a Config populated with the dataset paths the pipeline
// has always used.
func Defaults() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path:             "datasets/2016-12-07_catalog_paduri_virgine_si_cvasivirgine.xlsx",
			VirginSheet:      "PADURI VIRGINE",
			QuasiVirginSheet: "PADURI CVASIVIRGINE",
			CleanedPath:      "datasets/cleaned_2016-12-07_catalog_paduri_virgine_si_cvasivirgine.csv",
		},
		Join: JoinConfig{
			TreeCoverRaster: "datasets/treecover_carasSeverin_hunedoara.tif",
			TreeCoverBand:   1,
			LossYearRaster:  "datasets/lossyear_carasSeverin_hunedoara_2015_2020.tif",
			LossYearBand:    1,
			Counties:        []string{"Caras Severin", "Hunedoara"},
			JoinedPath:      "datasets/ministry_forest_with_gfc_data.csv",
		},
		Boundary: BoundaryConfig{
			Path:      "datasets/county_data/gadm41_ROU_1.shp",
			Attribute: "NAME_1",
			Values:    []string{"Cluj", "Alba"},
			Output:    "cluj_alba.gpkg",
		},
		Train: TrainConfig{
			Seed:         42,
			TestFraction: 0.1,
			Trees:        100,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "forest-sites-joined",
		},
	}
}

// Load builds the configuration. A missing TOML file is not an error; an
// unreadable or malformed one is. Environment variables override the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode config %q: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %q: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Catalog.Path = sharedcfg.EnvOrDefault("CATALOG_PATH", cfg.Catalog.Path)
	cfg.Catalog.VirginSheet = sharedcfg.EnvOrDefault("CATALOG_VIRGIN_SHEET", cfg.Catalog.VirginSheet)
	cfg.Catalog.QuasiVirginSheet = sharedcfg.EnvOrDefault("CATALOG_QUASI_VIRGIN_SHEET", cfg.Catalog.QuasiVirginSheet)
	cfg.Catalog.CleanedPath = sharedcfg.EnvOrDefault("CLEANED_PATH", cfg.Catalog.CleanedPath)

	cfg.Join.TreeCoverRaster = sharedcfg.EnvOrDefault("TREECOVER_RASTER", cfg.Join.TreeCoverRaster)
	cfg.Join.LossYearRaster = sharedcfg.EnvOrDefault("LOSSYEAR_RASTER", cfg.Join.LossYearRaster)
	cfg.Join.JoinedPath = sharedcfg.EnvOrDefault("JOINED_PATH", cfg.Join.JoinedPath)
	if v, ok := os.LookupEnv("JOIN_COUNTIES"); ok {
		cfg.Join.Counties = parseList(v)
	}

	var err error
	if cfg.Join.TreeCoverBand, err = envInt("TREECOVER_BAND", cfg.Join.TreeCoverBand); err != nil {
		return err
	}
	if cfg.Join.LossYearBand, err = envInt("LOSSYEAR_BAND", cfg.Join.LossYearBand); err != nil {
		return err
	}

	cfg.Boundary.Path = sharedcfg.EnvOrDefault("BOUNDARY_PATH", cfg.Boundary.Path)
	cfg.Boundary.Attribute = sharedcfg.EnvOrDefault("BOUNDARY_ATTRIBUTE", cfg.Boundary.Attribute)
	cfg.Boundary.Output = sharedcfg.EnvOrDefault("BOUNDARY_OUTPUT", cfg.Boundary.Output)
	if v, ok := os.LookupEnv("BOUNDARY_VALUES"); ok {
		cfg.Boundary.Values = parseList(v)
	}

	if s := os.Getenv("RANDOM_SEED"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return errors.New("invalid RANDOM_SEED")
		}
		cfg.Train.Seed = seed
	}
	if s := os.Getenv("TEST_FRACTION"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.New("invalid TEST_FRACTION")
		}
		cfg.Train.TestFraction = f
	}
	if cfg.Train.Trees, err = envInt("FOREST_TREES", cfg.Train.Trees); err != nil {
		return err
	}

	cfg.Log.Level = sharedcfg.EnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = sharedcfg.EnvOrDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Metrics.Textfile = sharedcfg.EnvOrDefault("METRICS_TEXTFILE", cfg.Metrics.Textfile)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = sharedcfg.ParseBrokers(v)
	}
	cfg.Kafka.Topic = sharedcfg.EnvOrDefault("KAFKA_TOPIC", cfg.Kafka.Topic)
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true"
	}
	return nil
}

// Validate reports the first setting that would make a stage fail late.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return errors.New("CATALOG_PATH is required")
	}
	if c.Catalog.VirginSheet == "" || c.Catalog.QuasiVirginSheet == "" {
		return errors.New("catalog sheet names are required")
	}
	if c.Catalog.CleanedPath == "" {
		return errors.New("CLEANED_PATH is required")
	}
	if c.Join.JoinedPath == "" {
		return errors.New("JOINED_PATH is required")
	}
	if c.Join.TreeCoverBand < 1 {
		return errors.New("invalid TREECOVER_BAND")
	}
	if c.Join.LossYearBand < 1 {
		return errors.New("invalid LOSSYEAR_BAND")
	}
	if c.Train.TestFraction <= 0 || c.Train.TestFraction >= 1 {
		return errors.New("TEST_FRACTION must be between 0 and 1")
	}
	if c.Train.Trees < 1 {
		return errors.New("invalid FOREST_TREES")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.Log.Format)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.Kafka.Topic == "" {
			return errors.New("KAFKA_TOPIC is required")
		}
	}
	return nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// parseList splits a comma-separated list, trimming entries and dropping
// empty ones. An empty string yields an empty list.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
