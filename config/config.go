//
// Copyright 2019 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS-IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
//
// Package config holds the serving layer's configuration.  The simulation
// engine itself takes no configuration beyond its input.
package config

import (
	"os"

	"github.com/goccy/go-yaml"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config configures the cfssim server.
type Config struct {
	// Port is the HTTP port to listen on.
	Port int `yaml:"port"`
	// CacheSize is the maximum number of completed runs kept in memory.
	CacheSize int `yaml:"cacheSize"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Port:      7402,
		CacheSize: 25,
	}
}

// Load reads a YAML config from path, filling unset fields from Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, status.Errorf(codes.InvalidArgument, "failed to read config file: %s", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, status.Errorf(codes.InvalidArgument, "failed to parse config file %q: %s", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects unusable configurations.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return status.Errorf(codes.InvalidArgument, "port %d out of range", c.Port)
	}
	if c.CacheSize <= 0 {
		return status.Errorf(codes.InvalidArgument, "cache size must be positive, got %d", c.CacheSize)
	}
	return nil
}
