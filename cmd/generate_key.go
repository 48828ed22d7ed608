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

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	aegiscrypto "github.com/aegisfs/aegisfs/internal/crypto"
)

var generateKeyOutput string

var generateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Generate a new random 256-bit key and write it hex-encoded to a file",
	RunE:  runGenerateKey,
}

func init() {
	generateKeyCmd.Flags().StringVar(&generateKeyOutput, "output", "", "path to write the hex-encoded key to")
	_ = generateKeyCmd.MarkFlagRequired("output")
}

func runGenerateKey(cmd *cobra.Command, args []string) error {
	hexKey, err := aegiscrypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}
	if err := os.WriteFile(generateKeyOutput, []byte(hexKey+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote new key to %s\n", generateKeyOutput)
	return nil
}
