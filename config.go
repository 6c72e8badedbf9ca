package main

import (
	"errors"
	"io"
	"os"

	"dario.cat/mergo"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" envconfig:"HATCH_ENVIRONMENT" default:"local"`
	LogLevel    string `yaml:"log_level" envconfig:"HATCH_LOG_LEVEL" default:"info"`
	SentryDSN   string `yaml:"sentry_dsn" envconfig:"HATCH_SENTRY_DSN"`
	Template    struct {
		// URL is a gocloud.dev/blob bucket URL (file://, s3://, mem://) or a
		// plain local directory.
		URL        string   `yaml:"url" envconfig:"HATCH_TEMPLATE_URL"`
		Prefix     string   `yaml:"prefix" envconfig:"HATCH_TEMPLATE_PREFIX"`
		CopyOnly   []string `yaml:"copy_only" envconfig:"HATCH_TEMPLATE_COPY_ONLY"`
		Executable []string `yaml:"executable" envconfig:"HATCH_TEMPLATE_EXECUTABLE"`
	} `yaml:"template"`
	Output string `yaml:"output" envconfig:"HATCH_OUTPUT"`
	// Rules points to a rule file. The built-in Python template rules are used
	// when empty.
	Rules string `yaml:"rules" envconfig:"HATCH_RULES"`
	// Features and Variables are read from the environment as k:v,k:v.
	Features  map[string]string `yaml:"features" envconfig:"HATCH_FEATURES"`
	Variables map[string]string `yaml:"variables" envconfig:"HATCH_VARIABLES"`
}

// GetConfig reads the environment and, when given, a YAML file. Values from
// the file win; the environment fills whatever the file leaves empty.
func GetConfig(configurationFile string) (Config, error) {
	var configurationFromEnvironment Config
	err := envconfig.Process("", &configurationFromEnvironment)
	if err != nil {
		return Config{}, err
	}

	var configurationFromYaml Config
	if configurationFile != "" {
		f, err := os.Open(configurationFile)
		if err != nil {
			return Config{}, err
		}
		defer func() {
			err := f.Close()
			if err != nil {
				log.Error().Err(err).Msg("closing configuration file")
			}
		}()
		err = yaml.NewDecoder(f).Decode(&configurationFromYaml)
		if err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	}

	err = mergo.Merge(&configurationFromYaml, configurationFromEnvironment)
	if err != nil {
		return Config{}, err
	}

	return configurationFromYaml, nil
}
