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

// Package logger holds the process-wide structured logger every other
// package logs through. It wraps a zap.SugaredLogger rather than
// exposing zap directly, so call sites stay short (Warnf, Errorw) and
// the sink can be swapped (stderr today, something else later) without
// touching callers.
package logger

import (
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.Mutex
	log  = newBootstrap()
	sess = ""
)

// newBootstrap builds a usable logger for the window between process
// start and Init — flag parsing happens before the real level is
// known — and for commands such as generate-key that never call Init.
func newBootstrap() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		// zap's production config cannot fail to build in practice; if
		// it somehow does, fall back to a logger that still writes.
		l = zap.NewExample()
	}
	return l.Sugar()
}

// Init replaces the process logger with one at the requested level,
// and stamps a session ID (one per mount invocation) onto every
// subsequent line so multi-mount log streams can be told apart.
func Init(level string, development bool) error {
	mu.Lock()
	defer mu.Unlock()

	var zlevel zapcore.Level
	if err := zlevel.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zlevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	sess = uuid.NewString()
	log = built.Sugar().With("session", sess)
	return nil
}

// SessionID returns the current session identifier, or "" if Init has
// not been called yet.
func SessionID() string {
	mu.Lock()
	defer mu.Unlock()
	return sess
}

func current() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return log
}

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// Errorw logs msg at error level with structured key/value pairs,
// e.g. logger.Errorw("store get failed", "path", p, "err", err).
func Errorw(msg string, kv ...interface{}) { current().Errorw(msg, kv...) }
func Warnw(msg string, kv ...interface{})  { current().Warnw(msg, kv...) }
func Infow(msg string, kv ...interface{})  { current().Infow(msg, kv...) }

// Sync flushes any buffered log entries. Call it once before process
// exit; errors writing to stderr are expected on some platforms and
// are ignored.
func Sync() {
	_ = current().Sync()
}

// Fatalf logs at error level and exits the process with status 1. It
// mirrors zap's Fatalf but keeps the exit path explicit so tests never
// exercise it by accident through a shared logger.
func Fatalf(format string, args ...interface{}) {
	current().Errorf(format, args...)
	Sync()
	os.Exit(1)
}
