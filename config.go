package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "OCRKV"

// Config holds the tunables of a conversion. Field tags name the flag,
// environment variable suffix and config file key.
type Config struct {
	Backend     string `toml:"backend"`
	MapSize     string `toml:"map-size"`
	FlushEvery  int    `toml:"flush-every"`
	CheckValid  bool   `toml:"check-valid"`
	Split       string `toml:"split"`
	Fresh       bool   `toml:"fresh"`
	MetricsPath string `toml:"metrics-path"`
	Verbose     bool   `toml:"verbose"`
}

func NewConfig() *Config {
	return &Config{
		Backend:    BackendBolt,
		MapSize:    humanize.IBytes(uint64(DefaultMapSize)),
		FlushEvery: DefaultFlushEvery,
		CheckValid: true,
		Split:      SplitTrain,
	}
}

// MapSizeBytes parses MapSize, which accepts plain byte counts or
// human units such as "1TiB" or "512MB".
func (c *Config) MapSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MapSize)
	if err != nil {
		return 0, errors.Wrapf(err, "parse map-size %q", c.MapSize)
	}
	return int64(n), nil
}

// Validate checks values that flags cannot constrain.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBolt, BackendSQLite:
	default:
		return errors.Wrapf(ErrUnknownBackend, "%q", c.Backend)
	}
	switch c.Split {
	case SplitTrain, SplitTest:
	default:
		return errors.Errorf("split must be %s or %s, got %q", SplitTrain, SplitTest, c.Split)
	}
	if c.FlushEvery <= 0 {
		return errors.Errorf("flush-every must be positive, got %d", c.FlushEvery)
	}
	if _, err := c.MapSizeBytes(); err != nil {
		return err
	}
	return nil
}

// WriteTOML prints the configuration in config file form.
func (c *Config) WriteTOML(w io.Writer) error {
	ret, err := toml.Marshal(*c)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	_, err = fmt.Fprintf(w, "%s\n", ret)
	return err
}

// configKeys returns the keys a config file may carry: every field of
// Config, whichever subcommand reads the file.
func configKeys() (map[string]bool, error) {
	b, err := toml.Marshal(Config{})
	if err != nil {
		return nil, errors.Wrap(err, "marshalling config")
	}
	tree, err := toml.LoadBytes(b)
	if err != nil {
		return nil, errors.Wrap(err, "loading config keys")
	}
	keys := make(map[string]bool)
	for _, k := range tree.Keys() {
		keys[k] = true
	}
	return keys, nil
}

// setAllConfig takes a FlagSet to be the definition of all configuration
// options, as well as their defaults. It then reads from the command line,
// the environment, and a config file (if specified), and applies the
// configuration in that priority order.
//
// Environment variables are the flag names capitalized, with dashes
// replaced by underscores and prefixed with OCRKV_. A config file may hold
// any Config key; keys without a flag in flags are ignored.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validTags, err := configKeys()
	if err != nil {
		return err
	}
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}
		for _, key := range v.AllKeys() {
			if _, ok := validTags[key]; !ok {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			// A flag set on the command line already has the highest
			// priority value.
			return
		}
		flagErr = f.Value.Set(v.GetString(f.Name))
	})
	return flagErr
}
