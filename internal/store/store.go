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

// Package store defines the capability surface the filesystem gateway
// consumes from the remote object backend: whole-object get/put/delete,
// prefix listing, and an existence probe. It is deliberately narrow —
// no multipart upload, no byte-range fetch, no conditional PUT.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the backend reports no such key.
// It is never returned by Put, Delete, or List.
var ErrNotFound = errors.New("store: object not found")

// Unavailable wraps a transport or service error from the backend. The
// gateway translates any error satisfying errors.As(err, *Unavailable)
// to EIO.
type Unavailable struct {
	Op  string
	Key string
	Err error
}

func (e *Unavailable) Error() string {
	return "store: " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Unavailable) Unwrap() error { return e.Err }

// Entry is one item returned by List: a path below the queried prefix,
// with the adapter's configured key prefix already stripped.
type Entry struct {
	Path string
	Size int64
}

// Store is the flat, key-value capability surface the gateway drives.
// Implementations must be safe for concurrent use and must not hold a
// lock across network I/O.
type Store interface {
	// Get fetches the full object body at path. It returns ErrNotFound
	// (wrapped or bare — callers should use errors.Is) if the backend
	// signals the key does not exist.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put overwrites the object at path unconditionally, uploading the
	// whole body in one request.
	Put(ctx context.Context, path string, body []byte) error

	// Delete removes the object at path. A missing key is not an error.
	Delete(ctx context.Context, path string) error

	// List returns every object whose logical path has prefix as a
	// prefix, paginating internally until exhausted.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Exists probes for the object's presence without transferring its
	// body. It returns false (not an error) when the backend reports
	// the key missing.
	Exists(ctx context.Context, path string) (bool, error)
}
