// Copyright 2026 The Aegisfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the mount command's TOML
// configuration file. Loading goes through two independent parsers:
// viper (for the flag/env-binding conveniences the rest of the
// ecosystem expects from it) and a second, strict-mode pass through
// BurntSushi/toml whose sole job is to catch malformed TOML and
// unrecognized keys with a clearer error than viper's permissive
// parser produces.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/aegisfs/aegisfs/internal/crypto"
)

// S3 holds the [s3] table.
type S3 struct {
	Bucket          string `mapstructure:"bucket" toml:"bucket"`
	Region          string `mapstructure:"region" toml:"region"`
	Endpoint        string `mapstructure:"endpoint" toml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" toml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" toml:"secret_access_key"`
	Prefix          string `mapstructure:"prefix" toml:"prefix"`
}

// Encryption holds the [encryption] table.
type Encryption struct {
	KeyFile   string `mapstructure:"key_file" toml:"key_file"`
	Algorithm string `mapstructure:"algorithm" toml:"algorithm"`
}

// Cache holds the [cache] table. Neither field is consumed by this
// binary; they are reserved for an external caching collaborator that
// may sit in front of the mount — this core does not cache.
type Cache struct {
	Directory string `mapstructure:"directory" toml:"directory"`
	MaxSizeMB int    `mapstructure:"max_size_mb" toml:"max_size_mb"`
}

// Config is the fully parsed, validated mount configuration.
type Config struct {
	S3         S3         `mapstructure:"s3" toml:"s3"`
	Encryption Encryption `mapstructure:"encryption" toml:"encryption"`
	Cache      Cache      `mapstructure:"cache" toml:"cache"`
}

// strictDoc is used only for the BurntSushi/toml validation pass; its
// field set mirrors Config's TOML tags exactly so toml.Decode's
// "undecoded keys" metadata catches typos in the user's file.
type strictDoc struct {
	S3         S3         `toml:"s3"`
	Encryption Encryption `toml:"encryption"`
	Cache      Cache      `toml:"cache"`
}

// Load reads and validates the TOML file at path.
func Load(path string) (*Config, error) {
	if err := validateStrict(path); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateStrict runs an independent TOML decode, surfacing syntax
// errors and unrecognized keys (at any table depth) with BurntSushi/toml's more
// specific diagnostics before viper's more permissive pass runs.
func validateStrict(path string) error {
	var doc strictDoc
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config: %s: unrecognized key(s): %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// validate enforces the required-field and allowed-value rules from
// the configuration table: bucket and region are required, key_file is
// required, and an unknown algorithm is rejected rather than silently
// mapped to the default.
func (c *Config) validate() error {
	if c.S3.Bucket == "" {
		return fmt.Errorf("config: [s3].bucket is required")
	}
	if c.S3.Region == "" {
		return fmt.Errorf("config: [s3].region is required")
	}
	if c.Encryption.KeyFile == "" {
		return fmt.Errorf("config: [encryption].key_file is required")
	}

	switch c.Encryption.Algorithm {
	case "", crypto.AlgorithmAES256GCM, crypto.AlgorithmChaCha20Poly1305:
		// ok; empty defers to crypto.New's default.
	default:
		return fmt.Errorf("config: [encryption].algorithm %q is not recognized (want %q or %q)",
			c.Encryption.Algorithm, crypto.AlgorithmAES256GCM, crypto.AlgorithmChaCha20Poly1305)
	}

	return nil
}
