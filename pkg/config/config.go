// Package config loads the user facing configuration from viper, validates it and
// converts it into the typed app configuration.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/viper"
)

var log = logging.Logger("config")

type Validatable interface {
	Validate() error
}

// Load unmarshals the global viper configuration into T and validates it.
func Load[T Validatable]() (T, error) {
	var out T
	if err := viper.Unmarshal(&out); err != nil {
		return out, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	log.Debugw("loaded config", "file", viper.ConfigFileUsed())
	return out, nil
}

var validate = validator.New()

func validateConfig(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
