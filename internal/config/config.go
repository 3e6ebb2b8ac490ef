package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	ControlPlane ControlPlaneConfig `mapstructure:"control_plane"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Debug        bool               `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

// ControlPlaneConfig contains hosting control plane settings
type ControlPlaneConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RegistryConfig contains module registry mirror settings
type RegistryConfig struct {
	MirrorURL    string        `mapstructure:"mirror_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// Load reads configuration from file, environment variables, and defaults
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	viper.SetConfigName("jack")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/jack")

	setDefaults()

	// Enable environment variable support with underscore replacer
	viper.AutomaticEnv()
	viper.SetEnvPrefix("JACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (if it exists)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads a .env file from the working directory or its parent
func loadEnvFile() error {
	locations := []string{".env", "../.env"}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg("Loaded .env file")
			return nil
		}
	}
	return fmt.Errorf("no .env file found")
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.body_limit", 16*1024*1024) // 16MB, bundles cap at 10MB

	// Control plane defaults
	viper.SetDefault("control_plane.url", "https://api.getjack.dev")
	viper.SetDefault("control_plane.token", "")
	viper.SetDefault("control_plane.timeout", "60s")

	// Registry defaults
	viper.SetDefault("registry.mirror_url", "https://esm.sh")
	viper.SetDefault("registry.fetch_timeout", "15s")

	viper.SetDefault("debug", false)
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Server.BodyLimit <= 0 {
		return fmt.Errorf("server body_limit must be positive, got: %d", c.Server.BodyLimit)
	}
	if c.ControlPlane.URL == "" {
		return fmt.Errorf("control plane URL cannot be empty")
	}
	if !strings.HasPrefix(c.ControlPlane.URL, "http://") && !strings.HasPrefix(c.ControlPlane.URL, "https://") {
		return fmt.Errorf("control plane URL must be absolute, got: %s", c.ControlPlane.URL)
	}
	if c.Registry.MirrorURL == "" {
		return fmt.Errorf("registry mirror_url cannot be empty")
	}
	if !strings.HasPrefix(c.Registry.MirrorURL, "http://") && !strings.HasPrefix(c.Registry.MirrorURL, "https://") {
		return fmt.Errorf("registry mirror_url must be absolute, got: %s", c.Registry.MirrorURL)
	}
	if c.Registry.FetchTimeout <= 0 {
		return fmt.Errorf("registry fetch_timeout must be positive, got: %v", c.Registry.FetchTimeout)
	}
	return nil
}
