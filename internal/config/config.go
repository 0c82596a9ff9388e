// Package config resolves icogen settings from a TOML file and the
// environment. Command line flags are layered on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"

	"git.sr.ht/~jackmordaunt/icogen"
	"git.sr.ht/~jackmordaunt/icogen/ico"
	"git.sr.ht/~jackmordaunt/icogen/internal/util"
	"git.sr.ht/~jackmordaunt/icogen/raster"
	"github.com/BurntSushi/toml"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "icogen.toml"

// Config holds job defaults.
type Config struct {
	Sizes    []int   `toml:"sizes"`
	Filter   string  `toml:"filter"`
	Sharpen  float64 `toml:"sharpen"`
	Compress bool    `toml:"compress"`
	PNGs     bool    `toml:"pngs"`
	ICNS     bool    `toml:"icns"`
	Workers  int     `toml:"workers"`
	SVGSide  int     `toml:"svg_side"`
	LogLevel string  `toml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Sizes:    append([]int(nil), icogen.DefaultSides...),
		Filter:   string(raster.CatmullRom),
		Sharpen:  raster.DefaultSharpen,
		Workers:  runtime.NumCPU(),
		SVGSide:  raster.DefaultSVGSide,
		LogLevel: "info",
	}
}

// Load layers the config file and then the environment over Default.
//
// The file is path if given, else $ICOGEN_CONFIG, else DefaultFile. Only an
// explicitly named file is required to exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = os.Getenv("ICOGEN_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	by, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	md, err := toml.Decode(string(by), c)
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("parsing config %s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

func (c *Config) loadEnv() error {
	if level := os.Getenv("ICOGEN_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if workers := os.Getenv("ICOGEN_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("ICOGEN_WORKERS: %w", err)
		}
		c.Workers = n
	}
	return nil
}

// Validate rejects settings no job could run with.
func (c Config) Validate() error {
	var errs util.MultiError
	if len(c.Sizes) == 0 {
		errs.Add(errors.New("config: no sizes"))
	}
	for _, side := range c.Sizes {
		if side < 1 || side > ico.MaxSide {
			errs.Add(fmt.Errorf("config: size %d outside 1..%d", side, ico.MaxSide))
		}
	}
	if _, err := raster.ParseFilter(c.Filter); err != nil {
		errs.Add(fmt.Errorf("config: %w", err))
	}
	if c.Workers < 1 {
		errs.Add(fmt.Errorf("config: workers must be positive, got %d", c.Workers))
	}
	if c.Sharpen < 0 {
		errs.Add(fmt.Errorf("config: negative sharpen sigma %v", c.Sharpen))
	}
	if c.SVGSide < 1 {
		errs.Add(fmt.Errorf("config: svg_side must be positive, got %d", c.SVGSide))
	}
	return errs.ErrorOrNil()
}
