// Package config provides configuration loading and parsing functionality
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format represents the configuration file format
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// formatFromExtension maps a file extension to a Format
func formatFromExtension(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Loader handles configuration loading from files, readers and the
// environment. Loaded files are merged over the default configuration and
// then overridden by environment variables.
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Default configuration
	defaultConfig *Config
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		searchPaths: []string{
			".",
			"./config",
			"./configs",
			"/etc/wangle",
			os.Getenv("HOME") + "/.wangle",
		},
		envPrefix:     "WANGLE",
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// LoadFromFile loads, merges, overrides and validates configuration from
// the named file.
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	format, err := formatFromExtension(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", filename, err)
	}

	return l.finish(data, format)
}

// LoadFromReader loads configuration from an io.Reader
func (l *Loader) LoadFromReader(reader io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read configuration data: %w", err)
	}
	return l.finish(data, format)
}

// AutoLoad discovers a configuration file in the search paths and loads it.
// Without a file it falls back to defaults plus environment overrides.
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, err := l.findConfigFile()
	if err != nil {
		if err == ErrConfigFileNotFound {
			config := l.defaults()
			l.applyEnv(config)
			if err := config.Validate(); err != nil {
				return nil, err
			}
			return config, nil
		}
		return nil, err
	}
	return l.LoadFromFile(configFile)
}

// finish parses the data, merges it over defaults, applies environment
// overrides and validates the result.
func (l *Loader) finish(data []byte, format Format) (*Config, error) {
	loaded, err := l.parse(data, format)
	if err != nil {
		return nil, err
	}

	config := l.merge(l.defaults(), loaded)
	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (l *Loader) defaults() *Config {
	if l.defaultConfig == nil {
		return DefaultConfig()
	}
	clone := *l.defaultConfig
	return &clone
}

// findConfigFile searches for configuration files in the search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"wangle.yaml", "wangle.yml", "wangle.json", "wangle.toml",
		"config.yaml", "config.yml", "config.json", "config.toml",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}
	return "", ErrConfigFileNotFound
}

// fileConfig mirrors Config with pointer fields, so the merge can tell a
// key that is absent from the file apart from an explicit zero or false.
type fileConfig struct {
	Log       fileLogConfig       `yaml:"log" json:"log" toml:"log"`
	Server    fileServerConfig    `yaml:"server" json:"server" toml:"server"`
	Client    fileClientConfig    `yaml:"client" json:"client" toml:"client"`
	Transport fileTransportConfig `yaml:"transport" json:"transport" toml:"transport"`
	Pipeline  filePipelineConfig  `yaml:"pipeline" json:"pipeline" toml:"pipeline"`
	Codec     fileCodecConfig     `yaml:"codec" json:"codec" toml:"codec"`
}

type fileLogConfig struct {
	Level  *LogLevel `yaml:"level" json:"level" toml:"level"`
	Format *string   `yaml:"format" json:"format" toml:"format"`
	Output *string   `yaml:"output" json:"output" toml:"output"`
}

type fileServerConfig struct {
	Address           *string        `yaml:"address" json:"address" toml:"address"`
	Port              *int           `yaml:"port" json:"port" toml:"port"`
	MaxConnections    *int           `yaml:"max_connections" json:"max_connections" toml:"max_connections"`
	KeepAlive         *bool          `yaml:"keep_alive" json:"keep_alive" toml:"keep_alive"`
	KeepAliveInterval *time.Duration `yaml:"keep_alive_interval" json:"keep_alive_interval" toml:"keep_alive_interval"`
}

type fileClientConfig struct {
	ConnectTimeout *time.Duration `yaml:"connect_timeout" json:"connect_timeout" toml:"connect_timeout"`
}

type fileTransportConfig struct {
	ReadTimeout   *time.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`
	WriteTimeout  *time.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`
	SendQueueSize *int           `yaml:"send_queue_size" json:"send_queue_size" toml:"send_queue_size"`
}

type filePipelineConfig struct {
	ReadBufferAllocation   *int `yaml:"read_buffer_allocation" json:"read_buffer_allocation" toml:"read_buffer_allocation"`
	ReadBufferMinAvailable *int `yaml:"read_buffer_min_available" json:"read_buffer_min_available" toml:"read_buffer_min_available"`
}

type fileCodecConfig struct {
	MaxFrameSize *int  `yaml:"max_frame_size" json:"max_frame_size" toml:"max_frame_size"`
	Checksum     *bool `yaml:"checksum" json:"checksum" toml:"checksum"`
}

// parse parses configuration data based on format
func (l *Loader) parse(data []byte, format Format) (*fileConfig, error) {
	config := &fileConfig{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse TOML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return config, nil
}

// applyEnv overrides configuration fields from environment variables
func (l *Loader) applyEnv(config *Config) {
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		config.Log.Level = LogLevel(val)
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		config.Log.Format = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_OUTPUT"); val != "" {
		config.Log.Output = val
	}

	if val := os.Getenv(l.envPrefix + "_SERVER_ADDRESS"); val != "" {
		config.Server.Address = val
	}
	if val := os.Getenv(l.envPrefix + "_SERVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.Server.Port = port
		}
	}
	if val := os.Getenv(l.envPrefix + "_SERVER_MAX_CONNECTIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Server.MaxConnections = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_SERVER_KEEP_ALIVE"); val != "" {
		config.Server.KeepAlive = strings.ToLower(val) == "true"
	}

	if val := os.Getenv(l.envPrefix + "_CLIENT_CONNECT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.Client.ConnectTimeout = d
		}
	}

	if val := os.Getenv(l.envPrefix + "_TRANSPORT_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.Transport.ReadTimeout = d
		}
	}
	if val := os.Getenv(l.envPrefix + "_TRANSPORT_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.Transport.WriteTimeout = d
		}
	}

	if val := os.Getenv(l.envPrefix + "_CODEC_MAX_FRAME_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Codec.MaxFrameSize = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_CODEC_CHECKSUM"); val != "" {
		config.Codec.Checksum = strings.ToLower(val) == "true"
	}
}

// merge overlays the loaded configuration on the defaults. Keys absent from
// the file keep the default; explicit zeros and booleans take effect.
func (l *Loader) merge(base *Config, loaded *fileConfig) *Config {
	merged := *base

	if loaded.Log.Level != nil {
		merged.Log.Level = *loaded.Log.Level
	}
	if loaded.Log.Format != nil {
		merged.Log.Format = *loaded.Log.Format
	}
	if loaded.Log.Output != nil {
		merged.Log.Output = *loaded.Log.Output
	}

	if loaded.Server.Address != nil {
		merged.Server.Address = *loaded.Server.Address
	}
	if loaded.Server.Port != nil {
		merged.Server.Port = *loaded.Server.Port
	}
	if loaded.Server.MaxConnections != nil {
		merged.Server.MaxConnections = *loaded.Server.MaxConnections
	}
	if loaded.Server.KeepAlive != nil {
		merged.Server.KeepAlive = *loaded.Server.KeepAlive
	}
	if loaded.Server.KeepAliveInterval != nil {
		merged.Server.KeepAliveInterval = *loaded.Server.KeepAliveInterval
	}

	if loaded.Client.ConnectTimeout != nil {
		merged.Client.ConnectTimeout = *loaded.Client.ConnectTimeout
	}

	if loaded.Transport.ReadTimeout != nil {
		merged.Transport.ReadTimeout = *loaded.Transport.ReadTimeout
	}
	if loaded.Transport.WriteTimeout != nil {
		merged.Transport.WriteTimeout = *loaded.Transport.WriteTimeout
	}
	if loaded.Transport.SendQueueSize != nil {
		merged.Transport.SendQueueSize = *loaded.Transport.SendQueueSize
	}

	if loaded.Pipeline.ReadBufferAllocation != nil {
		merged.Pipeline.ReadBufferAllocation = *loaded.Pipeline.ReadBufferAllocation
	}
	if loaded.Pipeline.ReadBufferMinAvailable != nil {
		merged.Pipeline.ReadBufferMinAvailable = *loaded.Pipeline.ReadBufferMinAvailable
	}

	if loaded.Codec.MaxFrameSize != nil {
		merged.Codec.MaxFrameSize = *loaded.Codec.MaxFrameSize
	}
	if loaded.Codec.Checksum != nil {
		merged.Codec.Checksum = *loaded.Codec.Checksum
	}

	return &merged
}
