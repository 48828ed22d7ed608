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

// Package inode maintains the bijection between filesystem paths and
// the inode numbers the kernel uses to name them. It is the only piece
// of mount state that is not derived on demand from the object store:
// the backend has no notion of an inode number at all, so one must be
// invented and held for the life of the mount.
//
// The service is entirely in-memory and is repopulated lazily on
// first reference after a remount; no identifier here is expected to
// survive past the mount session that created it.
package inode

import (
	"strings"
	"sync"
)

// RootInode is the fixed inode number of the mount's root directory.
// It is never allocated, reused, or forgotten.
const RootInode = 1

// Table is the path<->inode bijection backing the namespace: two maps
// and a counter behind one mutex, held across any update that touches
// both directions so the maps never drift out of being inverses of
// one another.
type Table struct {
	mu      sync.Mutex
	next    uint64
	pathOf  map[uint64]string
	inodeOf map[string]uint64
}

// New returns a Table with only the root inode registered, bound to
// the empty path.
func New() *Table {
	t := &Table{
		next:    RootInode + 1,
		pathOf:  make(map[uint64]string),
		inodeOf: make(map[string]uint64),
	}
	t.pathOf[RootInode] = ""
	t.inodeOf[""] = RootInode
	return t
}

// ResolveOrAssign returns the inode bound to path, allocating the next
// counter value and installing both map entries if path has not been
// seen before this mount.
func (t *Table) ResolveOrAssign(path string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ino, ok := t.inodeOf[path]; ok {
		return ino
	}
	ino := t.next
	t.next++
	t.inodeOf[path] = ino
	t.pathOf[ino] = path
	return ino
}

// PathOf returns the path bound to ino. The root inode returns ("",
// true). The bool is false if ino is not currently registered.
func (t *Table) PathOf(ino uint64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pathOf[ino]
	return p, ok
}

// InodeOf returns the inode bound to path without allocating one,
// for callers that only need an existence test (directory synthesis,
// lookup misses) and must not mint a new inode on a miss.
func (t *Table) InodeOf(path string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ino, ok := t.inodeOf[path]
	return ino, ok
}

// Forget removes both directions of the binding for path. It is used
// on unlink and rmdir once the backing object is gone; the retired
// inode number is never reassigned to a different path within the
// mount session.
func (t *Table) Forget(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ino, ok := t.inodeOf[path]
	if !ok {
		return
	}
	delete(t.inodeOf, path)
	delete(t.pathOf, ino)
}

// ParentInode returns the inode of path's longest strict prefix split
// on '/', or the root inode if path contains no '/'. It is used only
// to answer the ".." entry during readdir, and it allocates an inode
// for the parent if one is not already assigned.
func (t *Table) ParentInode(path string) uint64 {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return RootInode
	}
	return t.ResolveOrAssign(path[:idx])
}
