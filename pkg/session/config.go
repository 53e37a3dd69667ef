// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultLongInteractionTimeout = 5 * time.Minute
	defaultPollingInterval        = time.Second
	defaultWhaleKey               = "whale"
)

var ErrInvalidConfig = errors.New("invalid session config")

// Config describes the network a session runs against.
type Config struct {
	Endpoint               string        `mapstructure:"endpoint" yaml:"endpoint"`
	ChainID                int64         `mapstructure:"chain-id" yaml:"chain-id"`
	GasPrice               string        `mapstructure:"gas-price" yaml:"gas-price"`
	LongInteractionTimeout time.Duration `mapstructure:"long-interaction-timeout" yaml:"long-interaction-timeout"`
	PollingInterval        time.Duration `mapstructure:"polling-interval" yaml:"polling-interval"`
	KeystoreDir            string        `mapstructure:"keystore-dir" yaml:"keystore-dir"`
	WhaleKey               string        `mapstructure:"whale-key" yaml:"whale-key"`
	FriendKeys             []string      `mapstructure:"friend-keys" yaml:"friend-keys"`
	StateDir               string        `mapstructure:"state-dir" yaml:"state-dir"`
	ArtifactsDir           string        `mapstructure:"artifacts-dir" yaml:"artifacts-dir"`
	// MaxBlockDelay makes Load wait until the latest block is younger than
	// this. Zero skips the check.
	MaxBlockDelay time.Duration `mapstructure:"max-block-delay" yaml:"max-block-delay"`
}

// LoadConfig reads <dir>/<name>.yaml. Keys may be overridden by
// PD_SNIPPETS_<NAME>_<KEY> environment variables.
func LoadConfig(dir, name string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("long-interaction-timeout", defaultLongInteractionTimeout)
	v.SetDefault("polling-interval", defaultPollingInterval)
	v.SetDefault("whale-key", defaultWhaleKey)
	v.SetDefault("artifacts-dir", ".")

	v.SetEnvPrefix(envPrefix(name))
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read session config %s: %w", name, err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: missing endpoint", ErrInvalidConfig)
	}
	if c.KeystoreDir == "" {
		return fmt.Errorf("%w: missing keystore dir", ErrInvalidConfig)
	}
	if c.PollingInterval <= 0 {
		return fmt.Errorf("%w: polling interval must be positive", ErrInvalidConfig)
	}
	if c.MaxBlockDelay < 0 {
		return fmt.Errorf("%w: negative max block delay", ErrInvalidConfig)
	}
	if _, err := c.gasPrice(); err != nil {
		return err
	}
	return nil
}

// gasPrice returns the configured gas price or nil if it should be
// suggested by the network.
func (c *Config) gasPrice() (*big.Int, error) {
	if c.GasPrice == "" {
		return nil, nil
	}
	price, ok := new(big.Int).SetString(c.GasPrice, 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: gas price %q", ErrInvalidConfig, c.GasPrice)
	}
	return price, nil
}
