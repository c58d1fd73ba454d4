// Package config loads the YAML settings for the client and the line server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig holds the tunables of an interactive session.
type ClientConfig struct {
	// DefaultHost is offered when the user leaves the address prompt blank.
	DefaultHost string `yaml:"default_host"`

	// DefaultPort is used when the address carries no port of its own.
	DefaultPort int `yaml:"default_port"`

	// DefaultProtocol is "TCP" or "UDP".
	DefaultProtocol string `yaml:"default_protocol"`

	// IdleTimeoutSeconds ends the session after this long without activity.
	// 0 disables the inactivity timeout.
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`

	// ResponseWaitSeconds bounds each UDP exchange.
	ResponseWaitSeconds float64 `yaml:"response_wait_seconds"`

	// DialTimeoutSeconds bounds TCP connection setup and UDP socket setup.
	DialTimeoutSeconds float64 `yaml:"dial_timeout_seconds"`

	// ReadTimeoutSeconds bounds waiting for a TCP reply. 0 means no bound.
	ReadTimeoutSeconds float64 `yaml:"read_timeout_seconds"`

	// BufferSize is the receive buffer in bytes (largest UDP reply accepted).
	BufferSize int `yaml:"buffer_size"`
}

// clientFile is the on-disk layout: settings live under a "client" key.
type clientFile struct {
	Client *ClientConfig `yaml:"client"`
}

// DefaultClientConfig returns the stock client settings.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		DefaultHost:         "example.com",
		DefaultPort:         8080,
		DefaultProtocol:     "TCP",
		IdleTimeoutSeconds:  120,
		ResponseWaitSeconds: 3,
		DialTimeoutSeconds:  5,
		ReadTimeoutSeconds:  0,
		BufferSize:          1024,
	}
}

// LoadClientConfig loads client configuration from a YAML file and applies
// SOCKCLIENT_* environment overrides.
// A missing file yields the defaults; an unparsable one yields the defaults and the error.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &clientFile{Client: cfg}); err != nil {
				return DefaultClientConfig(), fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return cfg, err
		}
	}

	// Overrides land on a copy so a bad variable leaves none of them applied.
	env := *cfg
	if err := env.applyEnv(); err != nil {
		return cfg, err
	}
	return &env, env.Validate()
}

func (c *ClientConfig) applyEnv() error {
	if v := os.Getenv("SOCKCLIENT_HOST"); v != "" {
		c.DefaultHost = v
	}
	if v := os.Getenv("SOCKCLIENT_PROTOCOL"); v != "" {
		c.DefaultProtocol = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"SOCKCLIENT_PORT", &c.DefaultPort},
		{"SOCKCLIENT_IDLE_TIMEOUT", &c.IdleTimeoutSeconds},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("SOCKCLIENT_RESPONSE_WAIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SOCKCLIENT_RESPONSE_WAIT: %w", err)
		}
		c.ResponseWaitSeconds = f
	}
	return nil
}

// Validate reports every setting that cannot work, joined into one error.
func (c *ClientConfig) Validate() error {
	var errs []error
	if c.DefaultPort < 1 || c.DefaultPort > 65535 {
		errs = append(errs, fmt.Errorf("default_port %d out of range 1..65535", c.DefaultPort))
	}
	switch strings.ToUpper(c.DefaultProtocol) {
	case "TCP", "UDP":
	default:
		errs = append(errs, fmt.Errorf("default_protocol %q is not TCP or UDP", c.DefaultProtocol))
	}
	if c.IdleTimeoutSeconds < 0 {
		errs = append(errs, errors.New("idle_timeout_seconds must not be negative"))
	}
	if c.ResponseWaitSeconds <= 0 {
		errs = append(errs, errors.New("response_wait_seconds must be positive"))
	}
	if c.DialTimeoutSeconds < 0 || c.ReadTimeoutSeconds < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, errors.New("buffer_size must be positive"))
	}
	return errors.Join(errs...)
}

// IdleTimeout returns the inactivity interval.
func (c *ClientConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// ResponseWait returns the per-exchange UDP wait.
func (c *ClientConfig) ResponseWait() time.Duration {
	return seconds(c.ResponseWaitSeconds)
}

// DialTimeout returns the connection setup bound.
func (c *ClientConfig) DialTimeout() time.Duration {
	return seconds(c.DialTimeoutSeconds)
}

// ReadTimeout returns the TCP reply bound, 0 when unbounded.
func (c *ClientConfig) ReadTimeout() time.Duration {
	return seconds(c.ReadTimeoutSeconds)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
