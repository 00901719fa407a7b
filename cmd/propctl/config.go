package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	props "github.com/goliatone/go-props"
)

const (
	configFileName = "propctl"
	configFileType = "yaml"
	envPrefix      = "PROPCTL"

	cfgKeyPlanCapacity    = "cache.plans"
	cfgKeyProgramCapacity = "cache.programs"
	cfgKeyVerbose         = "log.verbose"
)

// config is the resolved CLI configuration.
type config struct {
	PlanCapacity    int
	ProgramCapacity int
	Verbose         bool
}

// loadConfig reads propctl.yaml from path, or from the working directory and
// $HOME/.config/propctl when path is empty. A missing file is not an error.
// Values can be overridden with PROPCTL_* environment variables and flags
// bound to v.
func loadConfig(v *viper.Viper, path string) (config, error) {
	v.SetDefault(cfgKeyPlanCapacity, props.DefaultPlanCapacity)
	v.SetDefault(cfgKeyProgramCapacity, props.DefaultProgramCapacity)
	v.SetDefault(cfgKeyVerbose, false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		// an explicit file must exist
		if _, err := os.Stat(path); err != nil {
			return config{}, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/propctl")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := config{
		PlanCapacity:    v.GetInt(cfgKeyPlanCapacity),
		ProgramCapacity: v.GetInt(cfgKeyProgramCapacity),
		Verbose:         v.GetBool(cfgKeyVerbose),
	}
	if cfg.PlanCapacity <= 0 {
		return config{}, fmt.Errorf("config: %s must be positive, got %d", cfgKeyPlanCapacity, cfg.PlanCapacity)
	}
	if cfg.ProgramCapacity <= 0 {
		return config{}, fmt.Errorf("config: %s must be positive, got %d", cfgKeyProgramCapacity, cfg.ProgramCapacity)
	}
	return cfg, nil
}
