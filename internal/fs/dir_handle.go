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

package fs

import (
	"sync"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// dirHandle holds the entry listing snapshotted at OpenDir time. There
// is no cache behind it: every OpenDir triggers one backend listing,
// and the handle simply replays that snapshot across however many
// ReadDir calls the kernel makes before ReleaseDirHandle.
type dirHandle struct {
	mu      sync.Mutex
	entries []fuseutil.Dirent
}

// childEntry is one immediate child discovered under a directory's
// prefix, before it has been assigned an inode.
type childEntry struct {
	name string
	kind fuseutil.DirentType
}

// newDirHandle builds the fixed '.', '..', then children entry list.
// selfIno is this directory's own inode (the '.' target); parentIno is
// the inode ".." should resolve to.
func newDirHandle(selfIno, parentIno fuseops.InodeID, children []childEntry, resolve func(name string) fuseops.InodeID) *dirHandle {
	entries := make([]fuseutil.Dirent, 0, len(children)+2)
	entries = append(entries,
		fuseutil.Dirent{Offset: 1, Inode: selfIno, Name: ".", Type: fuseutil.DT_Directory},
		fuseutil.Dirent{Offset: 2, Inode: parentIno, Name: "..", Type: fuseutil.DT_Directory},
	)
	for i, c := range children {
		entries = append(entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(3 + i),
			Inode:  resolve(c.name),
			Name:   c.name,
			Type:   c.kind,
		})
	}
	return &dirHandle{entries: entries}
}

// ReadDir serves one ReadDirOp against the buffered snapshot. op.Offset
// is the count of entries the kernel has already consumed; it stops as
// soon as an entry no longer fits in op.Dst, leaving the remainder for
// the next call.
func (dh *dirHandle) ReadDir(op *fuseops.ReadDirOp) error {
	dh.mu.Lock()
	defer dh.mu.Unlock()

	start := int(op.Offset)
	if start > len(dh.entries) {
		return nil
	}

	for _, e := range dh.entries[start:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}
