package flags

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type FlagBinding struct {
	FlagName string
	ViperKey string
	EnvVar   string // optional, an extra variable read besides the prefixed one
}

func AddAndBindFlags(flags *pflag.FlagSet, bindings []FlagBinding) error {
	for _, b := range bindings {
		f := flags.Lookup(b.FlagName)
		if f == nil {
			return fmt.Errorf("flag %q is not defined", b.FlagName)
		}
		if err := viper.BindPFlag(b.ViperKey, f); err != nil {
			return err
		}
		if b.EnvVar != "" {
			if err := viper.BindEnv(b.ViperKey, b.EnvVar); err != nil {
				return err
			}
		}
	}

	return nil
}
