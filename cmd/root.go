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

// Package cmd is the two-command CLI surface: mount and generate-key.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel       string
	logDevelopment bool
)

var rootCmd = &cobra.Command{
	Use:   "aegisfs",
	Short: "Mount an S3-compatible bucket as an encrypted local filesystem",
	Long: `aegisfs exposes an S3-compatible object store as a locally mountable
POSIX-like filesystem via FUSE. Every object is transparently
AEAD-encrypted before it leaves the machine and decrypted on read; the
backend never sees plaintext.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logDevelopment, "log-development", false, "use a human-readable development log encoder instead of JSON")

	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(generateKeyCmd)
}

// Execute runs the root command, printing and translating any error to a
// non-zero exit status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aegisfs:", err)
		os.Exit(1)
	}
}
