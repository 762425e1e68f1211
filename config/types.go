// Package config provides configuration management for pipeline servers
// and clients
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Config is the complete configuration for a pipeline server or client
type Config struct {
	// Logging configuration
	Log LogConfig `yaml:"log" json:"log" toml:"log"`

	// Server configuration
	Server ServerConfig `yaml:"server" json:"server" toml:"server"`

	// Client configuration
	Client ClientConfig `yaml:"client" json:"client" toml:"client"`

	// Transport configuration
	Transport TransportConfig `yaml:"transport" json:"transport" toml:"transport"`

	// Pipeline configuration
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" toml:"pipeline"`

	// Codec configuration
	Codec CodecConfig `yaml:"codec" json:"codec" toml:"codec"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level" toml:"level"`

	// Log format (json, console)
	Format string `yaml:"format" json:"format" toml:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" toml:"output"`
}

// ServerConfig contains the listening side configuration
type ServerConfig struct {
	// Listening address
	Address string `yaml:"address" json:"address" toml:"address"`

	// Listening port
	Port int `yaml:"port" json:"port" toml:"port"`

	// Maximum concurrent connections, zero means unlimited
	MaxConnections int `yaml:"max_connections" json:"max_connections" toml:"max_connections"`

	// Enable TCP keep-alive
	KeepAlive bool `yaml:"keep_alive" json:"keep_alive" toml:"keep_alive"`

	// Keep-alive interval
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval" json:"keep_alive_interval" toml:"keep_alive_interval"`
}

// ClientConfig contains the dialing side configuration
type ClientConfig struct {
	// Dial timeout
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" toml:"connect_timeout"`
}

// TransportConfig contains per-connection transport configuration
type TransportConfig struct {
	// Per-read deadline, zero disables it
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`

	// Per-write deadline, zero disables it
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`

	// Size of the asynchronous send queue
	SendQueueSize int `yaml:"send_queue_size" json:"send_queue_size" toml:"send_queue_size"`
}

// PipelineConfig contains pipeline-level configuration
type PipelineConfig struct {
	// Bytes allocated per read
	ReadBufferAllocation int `yaml:"read_buffer_allocation" json:"read_buffer_allocation" toml:"read_buffer_allocation"`

	// Minimum bytes available per read
	ReadBufferMinAvailable int `yaml:"read_buffer_min_available" json:"read_buffer_min_available" toml:"read_buffer_min_available"`
}

// CodecConfig contains framing configuration
type CodecConfig struct {
	// Maximum accepted frame payload size
	MaxFrameSize int `yaml:"max_frame_size" json:"max_frame_size" toml:"max_frame_size"`

	// Append and verify payload checksums
	Checksum bool `yaml:"checksum" json:"checksum" toml:"checksum"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "json",
			Output: "stderr",
		},
		Server: ServerConfig{
			Address:           "0.0.0.0",
			Port:              8080,
			MaxConnections:    1000,
			KeepAlive:         true,
			KeepAliveInterval: 60 * time.Second,
		},
		Client: ClientConfig{
			ConnectTimeout: 10 * time.Second,
		},
		Transport: TransportConfig{
			SendQueueSize: 256,
		},
		Pipeline: PipelineConfig{
			ReadBufferAllocation:   2048,
			ReadBufferMinAvailable: 2048,
		},
		Codec: CodecConfig{
			MaxFrameSize: 1 << 20,
		},
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if !c.Log.Level.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.Log.Level)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxConnections, c.Server.MaxConnections)
	}
	if c.Transport.SendQueueSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSendQueueSize, c.Transport.SendQueueSize)
	}
	if c.Pipeline.ReadBufferAllocation <= 0 || c.Pipeline.ReadBufferMinAvailable <= 0 {
		return fmt.Errorf("%w: allocation=%d min_available=%d",
			ErrInvalidBufferSettings,
			c.Pipeline.ReadBufferAllocation, c.Pipeline.ReadBufferMinAvailable)
	}
	if c.Codec.MaxFrameSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFrameSize, c.Codec.MaxFrameSize)
	}
	return nil
}

// NewLogger builds a zerolog logger from the logging configuration
func (c *LogConfig) NewLogger() zerolog.Logger {
	var out *os.File
	switch c.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			out = os.Stderr
		} else {
			out = f
		}
	}

	level, err := zerolog.ParseLevel(string(c.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	if c.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
