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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/spf13/cobra"

	"github.com/aegisfs/aegisfs/internal/clock"
	"github.com/aegisfs/aegisfs/internal/config"
	aegiscrypto "github.com/aegisfs/aegisfs/internal/crypto"
	"github.com/aegisfs/aegisfs/internal/fs"
	"github.com/aegisfs/aegisfs/internal/logger"
	"github.com/aegisfs/aegisfs/internal/store"
)

var (
	mountPoint string
	configPath string
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount the configured bucket at a local directory",
	RunE:  runMount,
}

func init() {
	mountCmd.Flags().StringVar(&mountPoint, "mountpoint", "", "local directory to mount the filesystem at")
	mountCmd.Flags().StringVar(&configPath, "config", "", "path to the TOML config file")
	_ = mountCmd.MarkFlagRequired("mountpoint")
	_ = mountCmd.MarkFlagRequired("config")
}

func runMount(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logLevel, logDevelopment); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	logger.Infof("aegisfs starting, session %s", logger.SessionID())

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	key, err := aegiscrypto.LoadKeyFile(cfg.Encryption.KeyFile)
	if err != nil {
		return fmt.Errorf("loading key file: %w", err)
	}
	envelope, err := aegiscrypto.New(cfg.Encryption.Algorithm, key)
	if err != nil {
		return fmt.Errorf("building cryptographic envelope: %w", err)
	}

	ctx := context.Background()
	backend, err := store.New(ctx, store.Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Prefix:          cfg.S3.Prefix,
	})
	if err != nil {
		return fmt.Errorf("building S3 store adapter: %w", err)
	}

	uid, gid := os.Getuid(), os.Getgid()
	gateway := fs.New(fs.Deps{
		Store:    backend,
		Envelope: envelope,
		Clock:    clock.Real{},
		Uid:      uint32(uid),
		Gid:      uint32(gid),
		FileMode: 0o644,
		DirMode:  0o755,
	})

	mountCfg := &fuse.MountConfig{
		FSName:     "aegis-fs",
		VolumeName: "aegisfs",
		Options:    map[string]string{"allow_other": ""},
	}

	logger.Infof("mounting %q", mountPoint)
	mfs, err := fuse.Mount(mountPoint, fs.Server(gateway), mountCfg)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Infof("received shutdown signal, unmounting %q", mountPoint)
		if err := fuse.Unmount(mountPoint); err != nil {
			logger.Errorf("unmount failed: %v", err)
		}
	}()

	if err := mfs.Join(ctx); err != nil {
		return fmt.Errorf("serving filesystem: %w", err)
	}
	logger.Infof("aegisfs unmounted cleanly")
	return nil
}
