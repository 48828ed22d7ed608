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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "aegisfs.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
[s3]
bucket = "my-bucket"
region = "us-east-1"
endpoint = "https://s3.example.internal"
prefix = "aegisfs/"

[encryption]
key_file = "/etc/aegisfs/key"
algorithm = "chacha20-poly1305"

[cache]
directory = "/var/cache/aegisfs"
max_size_mb = 512
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", cfg.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Equal(t, "chacha20-poly1305", cfg.Encryption.Algorithm)
	assert.Equal(t, 512, cfg.Cache.MaxSizeMB)
}

func TestLoadDefaultsAlgorithmEmpty(t *testing.T) {
	path := writeConfig(t, `
[s3]
bucket = "b"
region = "r"

[encryption]
key_file = "/etc/aegisfs/key"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Encryption.Algorithm)
}

func TestLoadRejectsMissingBucket(t *testing.T) {
	path := writeConfig(t, `
[s3]
region = "r"

[encryption]
key_file = "/etc/aegisfs/key"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestLoadRejectsUnknownAlgorithm(t *testing.T) {
	path := writeConfig(t, `
[s3]
bucket = "b"
region = "r"

[encryption]
key_file = "/etc/aegisfs/key"
algorithm = "rot13"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not recognized")
}

func TestLoadRejectsUnrecognizedKey(t *testing.T) {
	path := writeConfig(t, `
[s3]
bucket = "b"
region = "r"
bogus_key = "oops"

[encryption]
key_file = "/etc/aegisfs/key"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized key")
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeConfig(t, `this is not [ valid toml`)

	_, err := Load(path)
	require.Error(t, err)
}
