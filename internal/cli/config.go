package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/ormsql/internal/dialect"
	"github.com/roach88/ormsql/internal/querysql"
)

// Setting keys, shared by ormsql.yaml, ORMSQL_* variables and flags.
const (
	keyDialect  = "dialect"
	keySchema   = "schema"
	keyMaxDepth = "max_depth"
)

// Settings are the resolved CLI settings.
type Settings struct {
	Dialect  *dialect.Dialect
	Schema   string // CUE metadata directory; empty when unset
	MaxDepth int
}

// newConfig returns a viper instance with the ormsql search path, env
// prefix and defaults. Each root command owns its own instance.
func newConfig() *viper.Viper {
	v := viper.New()
	v.SetConfigName("ormsql")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORMSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyDialect, string(dialect.NameMySQL))
	v.SetDefault(keyMaxDepth, querysql.DefaultMaxDepth)
	return v
}

// bindFlags binds the persistent setting flags to their keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for key, flag := range map[string]string{
		keyDialect:  "dialect",
		keySchema:   "schema",
		keyMaxDepth: "max-depth",
	} {
		// BindPFlag only fails on a nil flag.
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

// readConfig reads the settings file. A missing ormsql.yaml is fine; a
// missing file named with --config is not.
func readConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	}
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if file == "" && errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("reading config: %w", err)
}

// Settings resolves and validates the current settings.
func (o *RootOptions) Settings() (*Settings, error) {
	v := o.config
	if v == nil {
		v = newConfig()
	}

	name := v.GetString(keyDialect)
	d := dialect.Get(name)
	if d == nil {
		return nil, fmt.Errorf("unknown dialect %q: must be one of %v", name, dialect.Names())
	}

	depth := v.GetInt(keyMaxDepth)
	if depth <= 0 {
		depth = querysql.DefaultMaxDepth
	}

	return &Settings{
		Dialect:  d,
		Schema:   v.GetString(keySchema),
		MaxDepth: depth,
	}, nil
}
