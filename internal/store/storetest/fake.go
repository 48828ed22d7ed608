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

// Package storetest provides an in-memory store.Store for exercising
// the gateway and inode layers without a real S3-compatible backend.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aegisfs/aegisfs/internal/store"
)

// Fake is an in-memory store.Store backed by a plain map. It is safe
// for concurrent use.
type Fake struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailGet, if set, is wrapped in a store.Unavailable and returned by
	// Get for every key (simulating a transport failure distinct from a
	// missing key).
	FailGet error
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{objects: make(map[string][]byte)}
}

func (f *Fake) Get(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailGet != nil {
		return nil, &store.Unavailable{Op: "get", Key: path, Err: f.FailGet}
	}
	body, ok := f.objects[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (f *Fake) Put(_ context.Context, path string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := make([]byte, len(body))
	copy(cp, body)
	f.objects[path] = cp
	return nil
}

func (f *Fake) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.objects, path)
	return nil
}

func (f *Fake) List(_ context.Context, prefix string) ([]store.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entries []store.Entry
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			entries = append(entries, store.Entry{Path: k, Size: int64(len(v))})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (f *Fake) Exists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.objects[path]
	return ok, nil
}

// Seed directly installs an object, bypassing Put, for test setup.
func (f *Fake) Seed(path string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = body
}
