package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/lumen-os/hdep/engine"
	"github.com/lumen-os/hdep/hwcap"
	"github.com/lumen-os/hdep/manager"
)

// config mirrors the hdep.toml layout shipped on the target image.
type config struct {
	Manager managerConfig `toml:"manager"`
	Stack   stackConfig   `toml:"stack"`
}

type managerConfig struct {
	ModuleDir        string `toml:"module-dir"`
	LoadTimeout      string `toml:"load-timeout"`
	Capacity         int    `toml:"capacity"`
	MemoryLimitPages uint32 `toml:"memory-limit-pages"`
}

type stackConfig struct {
	Core         string `toml:"core"`
	SIMDCompress string `toml:"simd-compress"`
	Compress     string `toml:"compress"`
	Encrypt      string `toml:"encrypt"`
	Network      string `toml:"network"`
	Storage      string `toml:"storage"`
}

// loadConfig reads the TOML file at path. An empty path yields the
// built-in defaults.
func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// dir returns the module directory to scan, with the --dir flag taking
// precedence over the config file and the built-in default.
func (c config) dir() string {
	if moduleDir != "" {
		return moduleDir
	}
	if c.Manager.ModuleDir != "" {
		return c.Manager.ModuleDir
	}
	return manager.DefaultModuleDir
}

// options translates the file config into manager options.
func (c config) options(log *zap.Logger) (manager.Options, error) {
	opts := manager.Options{
		Logger:   log,
		Features: hwcap.Detect(),
		Capacity: c.Manager.Capacity,
		Engine:   engine.Options{MemoryLimitPages: c.Manager.MemoryLimitPages},
		Stack: manager.StackNames{
			Core:         c.Stack.Core,
			SIMDCompress: c.Stack.SIMDCompress,
			Compress:     c.Stack.Compress,
			Encrypt:      c.Stack.Encrypt,
			Network:      c.Stack.Network,
			Storage:      c.Stack.Storage,
		},
	}

	if c.Manager.LoadTimeout != "" {
		d, err := time.ParseDuration(c.Manager.LoadTimeout)
		if err != nil {
			return opts, fmt.Errorf("parse load-timeout: %w", err)
		}
		opts.LoadTimeout = d
	}

	return opts, nil
}
