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
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfssim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, "port: 9000\ncacheSize: 50\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 50, cfg.CacheSize)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, "port: 9000\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, Default().CacheSize, cfg.CacheSize)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		description string
		contents    string
	}{{
		description: "unparseable yaml",
		contents:    "port: [",
	}, {
		description: "port out of range",
		contents:    "port: 70000\n",
	}, {
		description: "non-positive cache size",
		contents:    "cacheSize: 0\n",
	}}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.contents))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
