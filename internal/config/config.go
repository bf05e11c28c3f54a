package config

import (
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Account is a bootstrap entry: initial holdings for one account, keyed by
// asset symbol.
type Account struct {
	ID       string             `yaml:"id"`
	Holdings map[string]float64 `yaml:"holdings"`
}

type Config struct {
	Server struct {
		Addr                string   `yaml:"addr"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds"`
		AllowedOrigins      []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Market struct {
		Instrument string `yaml:"instrument"`
		Quote      string `yaml:"quote"`
	} `yaml:"market"`
	Accounts []Account `yaml:"accounts"`
}

func defaultConfig() Config {
	var c Config
	c.Server.Addr = ":3000"
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AllowedOrigins = []string{"*"}
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Market.Instrument = "NVIDIA"
	c.Market.Quote = "USD"
	c.Accounts = []Account{
		{ID: "1", Holdings: map[string]float64{"NVIDIA": 10, "USD": 50000}},
		{ID: "2", Holdings: map[string]float64{"NVIDIA": 20, "USD": 50000}},
	}
	return c
}

// Load builds the configuration from defaults, an optional yaml file named
// by BOURSE_CONFIG, and env var overrides, in that order.
func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("BOURSE_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config file unreadable, serving defaults")
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			// A partial unmarshal may have clobbered fields already.
			c = defaultConfig()
			log.Warn().Err(err).Str("path", path).Msg("config file malformed, serving defaults")
		}
	}
	if v := os.Getenv("BOURSE_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BOURSE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BOURSE_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("BOURSE_INSTRUMENT"); v != "" {
		c.Market.Instrument = v
	}
	if v := os.Getenv("BOURSE_QUOTE"); v != "" {
		c.Market.Quote = v
	}
	return c
}
