package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/drone/envsubst"
	"gopkg.in/yaml.v3"

	"github.com/grafana/linemap/pkg/codec"
	"github.com/grafana/linemap/pkg/registry"
	"github.com/grafana/linemap/pkg/resource"
)

type config struct {
	Codec    codec.Config    `yaml:"codec"`
	Storage  resource.Config `yaml:"storage"`
	Registry registry.Config `yaml:"registry"`
}

func (c *config) RegisterFlags(f *flag.FlagSet) {
	c.Codec.RegisterFlags(f)
	c.Storage.RegisterFlags(f)
	c.Registry.RegisterFlags(f)
}

func (c *config) Validate() error {
	if err := c.Codec.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return c.Registry.Validate()
}

// loadConfig starts from the flag defaults and overlays the YAML file at
// path, if any. Unknown fields are rejected.
func loadConfig(path string, expandEnv bool) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("config-file-loader", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if expandEnv {
			s, err := envsubst.EvalEnv(string(buf))
			if err != nil {
				return nil, fmt.Errorf("expand env in config file: %w", err)
			}
			buf = []byte(s)
		}
		dec := yaml.NewDecoder(bytes.NewReader(buf))
		dec.KnownFields(true)
		if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
