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
	"os"

	"github.com/jacobsa/fuse/fuseops"
)

// dirAttrs returns the attribute record reported for any directory,
// synthesized or root. Every timestamp is stamped with the current
// wall clock; nothing about a directory is persisted between calls.
func (fs *FileSystem) dirAttrs() fuseops.InodeAttributes {
	now := fs.clock.Now()
	return fuseops.InodeAttributes{
		Size:   0,
		Nlink:  2,
		Mode:   os.ModeDir | fs.dirMode,
		Atime:  now,
		Mtime:  now,
		Ctime:  now,
		Crtime: now,
		Uid:    fs.uid,
		Gid:    fs.gid,
	}
}

// fileAttrsForSize returns the attribute record for a regular file
// whose decrypted body is size bytes long.
func (fs *FileSystem) fileAttrsForSize(size uint64) fuseops.InodeAttributes {
	now := fs.clock.Now()
	return fuseops.InodeAttributes{
		Size:   size,
		Nlink:  1,
		Mode:   fs.fileMode,
		Atime:  now,
		Mtime:  now,
		Ctime:  now,
		Crtime: now,
		Uid:    fs.uid,
		Gid:    fs.gid,
	}
}
