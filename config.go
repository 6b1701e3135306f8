// Copyright 2024-2026 Kindred Labs, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package restpool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kindredlabs/restpool/endpoint"
)

// rawConfig mirrors the YAML document. Durations are strings in Go
// duration syntax ("30s", "5m"); booleans are pointers so absence and
// false are distinguishable.
type rawConfig struct {
	BaseURL        string            `yaml:"base_url"`
	UserAgent      string            `yaml:"user_agent"`
	DefaultHeaders map[string]string `yaml:"default_headers"`
	ConnectTimeout string            `yaml:"connect_timeout"`
	RequestTimeout string            `yaml:"request_timeout"`
	MaxBodyBytes   int64             `yaml:"max_body_bytes"`
	VerifyTLS      *bool             `yaml:"verify_tls"`
	Pool           struct {
		MaxTotalConnections            int    `yaml:"max_total_connections"`
		MaxConnectionsPerEndpoint      int    `yaml:"max_connections_per_endpoint"`
		ConnectionIdleTTL              string `yaml:"connection_idle_ttl"`
		MaxConnectionReuseCount        int    `yaml:"max_connection_reuse_count"`
		MaxConnectionAge               string `yaml:"max_connection_age"`
		CloseOnPrune                   *bool  `yaml:"close_on_prune"`
		CloseOnShutdown                *bool  `yaml:"close_on_shutdown"`
		CircuitBreakerFailureThreshold int    `yaml:"circuit_breaker_failure_threshold"`
		CircuitBreakerTimeout          string `yaml:"circuit_breaker_timeout"`
	} `yaml:"pool"`
}

// Config is a validated client configuration loaded from YAML. Zero
// fields fall back to the client defaults when turned into options.
type Config struct {
	BaseURL        string
	UserAgent      string
	DefaultHeaders map[string]string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	VerifyTLS      bool
	Pool           PoolConfig
}

// LoadConfig reads and parses a YAML client configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(raw)
}

// ParseConfig parses a YAML client configuration document and
// validates it: durations must parse, counts must be non-negative, and
// a base_url must be a valid absolute URL without a query string.
func ParseConfig(data []byte) (*Config, error) {
	var rc rawConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	cfg := &Config{
		BaseURL:        rc.BaseURL,
		UserAgent:      rc.UserAgent,
		DefaultHeaders: rc.DefaultHeaders,
		MaxBodyBytes:   rc.MaxBodyBytes,
		VerifyTLS:      true,
	}
	if rc.VerifyTLS != nil {
		cfg.VerifyTLS = *rc.VerifyTLS
	}
	if cfg.BaseURL != "" {
		if _, err := endpoint.ParseBaseURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("base_url: %w", err)
		}
	}
	if cfg.MaxBodyBytes < 0 {
		return nil, fmt.Errorf("max_body_bytes: must not be negative")
	}

	var err error
	if cfg.ConnectTimeout, err = parseDuration("connect_timeout", rc.ConnectTimeout); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDuration("request_timeout", rc.RequestTimeout); err != nil {
		return nil, err
	}

	pool := NewPoolConfig()
	if rc.Pool.MaxTotalConnections < 0 {
		return nil, fmt.Errorf("pool.max_total_connections: must not be negative")
	}
	if rc.Pool.MaxTotalConnections > 0 {
		pool.MaxTotalConnections = rc.Pool.MaxTotalConnections
	}
	if rc.Pool.MaxConnectionsPerEndpoint < 0 {
		return nil, fmt.Errorf("pool.max_connections_per_endpoint: must not be negative")
	}
	if rc.Pool.MaxConnectionsPerEndpoint > 0 {
		pool.MaxConnectionsPerEndpoint = rc.Pool.MaxConnectionsPerEndpoint
	}
	if d, err := parseDuration("pool.connection_idle_ttl", rc.Pool.ConnectionIdleTTL); err != nil {
		return nil, err
	} else if d > 0 {
		pool.ConnectionIdleTTL = d
	}
	if rc.Pool.MaxConnectionReuseCount < 0 {
		return nil, fmt.Errorf("pool.max_connection_reuse_count: must not be negative")
	}
	if rc.Pool.MaxConnectionReuseCount > 0 {
		pool.MaxConnectionReuseCount = rc.Pool.MaxConnectionReuseCount
	}
	if d, err := parseDuration("pool.max_connection_age", rc.Pool.MaxConnectionAge); err != nil {
		return nil, err
	} else if d > 0 {
		pool.MaxConnectionAge = d
	}
	if rc.Pool.CloseOnPrune != nil {
		pool.CloseOnPrune = *rc.Pool.CloseOnPrune
	}
	if rc.Pool.CloseOnShutdown != nil {
		pool.CloseOnShutdown = *rc.Pool.CloseOnShutdown
	}
	if rc.Pool.CircuitBreakerFailureThreshold < 0 {
		return nil, fmt.Errorf("pool.circuit_breaker_failure_threshold: must not be negative")
	}
	if rc.Pool.CircuitBreakerFailureThreshold > 0 {
		pool.CircuitBreakerFailureThreshold = rc.Pool.CircuitBreakerFailureThreshold
	}
	if d, err := parseDuration("pool.circuit_breaker_timeout", rc.Pool.CircuitBreakerTimeout); err != nil {
		return nil, err
	} else if d > 0 {
		pool.CircuitBreakerTimeout = d
	}
	cfg.Pool = pool

	return cfg, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", field)
	}
	return d, nil
}

// ClientOptions renders the configuration as a list of options, ready
// to pass to NewClient or NewBlockingClient. Additional options may be
// appended to override individual fields.
func (c *Config) ClientOptions() []ClientOption {
	options := []ClientOption{
		WithVerifyTLS(c.VerifyTLS),
		WithPoolConfig(c.Pool),
	}
	if c.BaseURL != "" {
		options = append(options, WithBaseURL(c.BaseURL))
	}
	if c.UserAgent != "" {
		options = append(options, WithUserAgent(c.UserAgent))
	}
	if len(c.DefaultHeaders) > 0 {
		options = append(options, WithDefaultHeaders(c.DefaultHeaders))
	}
	if c.ConnectTimeout > 0 {
		options = append(options, WithConnectTimeout(c.ConnectTimeout))
	}
	if c.RequestTimeout > 0 {
		options = append(options, WithRequestTimeout(c.RequestTimeout))
	}
	if c.MaxBodyBytes > 0 {
		options = append(options, WithMaxBodyBytes(c.MaxBodyBytes))
	}
	return options
}
