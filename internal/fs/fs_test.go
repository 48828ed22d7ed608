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
	"context"
	"os"
	"testing"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisfs/aegisfs/internal/clock"
	aegiscrypto "github.com/aegisfs/aegisfs/internal/crypto"
	"github.com/aegisfs/aegisfs/internal/inode"
	"github.com/aegisfs/aegisfs/internal/store/storetest"
)

func newTestFS(t *testing.T) (*FileSystem, *storetest.Fake) {
	t.Helper()

	key := make([]byte, aegiscrypto.KeySize)
	env, err := aegiscrypto.New(aegiscrypto.AlgorithmAES256GCM, key)
	require.NoError(t, err)

	fake := storetest.New()
	gw := New(Deps{
		Store:    fake,
		Envelope: env,
		Clock:    clock.NewFake(time.Unix(1700000000, 0)),
		Uid:      1000,
		Gid:      1000,
		FileMode: 0o644,
		DirMode:  0o755,
	})
	return gw, fake
}

func TestCreateLookupGetAttrRoundTrip(t *testing.T) {
	gw, _ := newTestFS(t)

	createOp := &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "hello.txt"}
	require.NoError(t, gw.CreateFile(createOp))
	assert.Equal(t, uint64(0), createOp.Entry.Attributes.Size)

	lookupOp := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "hello.txt"}
	require.NoError(t, gw.LookUpInode(lookupOp))
	assert.Equal(t, createOp.Entry.Child, lookupOp.Entry.Child)

	attrOp := &fuseops.GetInodeAttributesOp{Inode: lookupOp.Entry.Child}
	require.NoError(t, gw.GetInodeAttributes(attrOp))
	assert.Equal(t, uint64(0), attrOp.Attributes.Size)
	assert.False(t, attrOp.Attributes.Mode.IsDir())
}

func TestLookupMissingReturnsENOENT(t *testing.T) {
	gw, _ := newTestFS(t)

	op := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "nope"}
	err := gw.LookUpInode(op)
	assert.Equal(t, fuse.ENOENT, err)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	gw, _ := newTestFS(t)

	createOp := &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "f"}
	require.NoError(t, gw.CreateFile(createOp))
	ino := createOp.Entry.Child

	payload := []byte("the quick brown fox jumps over the lazy dog")
	writeOp := &fuseops.WriteFileOp{Inode: ino, Offset: 0, Data: payload}
	require.NoError(t, gw.WriteFile(writeOp))

	readOp := &fuseops.ReadFileOp{Inode: ino, Offset: 0, Dst: make([]byte, 4096)}
	require.NoError(t, gw.ReadFile(readOp))
	assert.Equal(t, payload, readOp.Dst[:readOp.BytesRead])

	attrOp := &fuseops.GetInodeAttributesOp{Inode: ino}
	require.NoError(t, gw.GetInodeAttributes(attrOp))
	assert.Equal(t, uint64(len(payload)), attrOp.Attributes.Size)
}

func TestWriteZeroExtendsPastEnd(t *testing.T) {
	gw, _ := newTestFS(t)

	createOp := &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "sparse"}
	require.NoError(t, gw.CreateFile(createOp))
	ino := createOp.Entry.Child

	writeOp := &fuseops.WriteFileOp{Inode: ino, Offset: 10, Data: []byte("end")}
	require.NoError(t, gw.WriteFile(writeOp))

	readOp := &fuseops.ReadFileOp{Inode: ino, Offset: 0, Dst: make([]byte, 64)}
	require.NoError(t, gw.ReadFile(readOp))
	got := readOp.Dst[:readOp.BytesRead]
	assert.Len(t, got, 13)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, got[:10])
	assert.Equal(t, "end", string(got[10:]))
}

func TestReadPastEndReturnsEmpty(t *testing.T) {
	gw, _ := newTestFS(t)

	createOp := &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "f"}
	require.NoError(t, gw.CreateFile(createOp))
	ino := createOp.Entry.Child

	readOp := &fuseops.ReadFileOp{Inode: ino, Offset: 1000, Dst: make([]byte, 16)}
	require.NoError(t, gw.ReadFile(readOp))
	assert.Equal(t, 0, readOp.BytesRead)
}

func TestReadWriteRejectRootWithEISDIR(t *testing.T) {
	gw, _ := newTestFS(t)

	readOp := &fuseops.ReadFileOp{Inode: fuseops.RootInodeID, Dst: make([]byte, 16)}
	assert.Equal(t, fuse.EISDIR, gw.ReadFile(readOp))

	writeOp := &fuseops.WriteFileOp{Inode: fuseops.RootInodeID, Data: []byte("x")}
	assert.Equal(t, fuse.EISDIR, gw.WriteFile(writeOp))
}

func TestMkDirThenLookupReportsDirectory(t *testing.T) {
	gw, _ := newTestFS(t)

	mkdirOp := &fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "sub"}
	require.NoError(t, gw.MkDir(mkdirOp))
	assert.True(t, mkdirOp.Entry.Attributes.Mode.IsDir())

	lookupOp := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "sub"}
	require.NoError(t, gw.LookUpInode(lookupOp))
	assert.True(t, lookupOp.Entry.Attributes.Mode.IsDir())
	assert.Equal(t, mkdirOp.Entry.Child, lookupOp.Entry.Child)
}

func TestDirectoryNlinkIsTwo(t *testing.T) {
	gw, _ := newTestFS(t)

	mkdirOp := &fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "sub"}
	require.NoError(t, gw.MkDir(mkdirOp))
	assert.Equal(t, uint64(2), mkdirOp.Entry.Attributes.Nlink)

	rootAttrOp := &fuseops.GetInodeAttributesOp{Inode: fuseops.RootInodeID}
	require.NoError(t, gw.GetInodeAttributes(rootAttrOp))
	assert.Equal(t, uint64(2), rootAttrOp.Attributes.Nlink)

	createOp := &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "f.txt"}
	require.NoError(t, gw.CreateFile(createOp))
	assert.Equal(t, uint64(1), createOp.Entry.Attributes.Nlink)
}

func TestNameValidationRejectsNonUTF8(t *testing.T) {
	gw, _ := newTestFS(t)
	badName := string([]byte{0xff, 0xfe})

	assert.Equal(t, fuse.EINVAL, gw.LookUpInode(&fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: badName}))
	assert.Equal(t, fuse.EINVAL, gw.MkDir(&fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: badName}))
	assert.Equal(t, fuse.EINVAL, gw.CreateFile(&fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: badName}))
	assert.Equal(t, fuse.EINVAL, gw.Unlink(&fuseops.UnlinkOp{Parent: fuseops.RootInodeID, Name: badName}))
	assert.Equal(t, fuse.EINVAL, gw.RmDir(&fuseops.RmDirOp{Parent: fuseops.RootInodeID, Name: badName}))
}

func TestUnlinkRemovesFile(t *testing.T) {
	gw, _ := newTestFS(t)

	require.NoError(t, gw.CreateFile(&fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "gone"}))
	require.NoError(t, gw.Unlink(&fuseops.UnlinkOp{Parent: fuseops.RootInodeID, Name: "gone"}))

	err := gw.LookUpInode(&fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "gone"})
	assert.Equal(t, fuse.ENOENT, err)
}

func TestUnlinkOfMissingObjectIsNotAnError(t *testing.T) {
	gw, _ := newTestFS(t)
	err := gw.Unlink(&fuseops.UnlinkOp{Parent: fuseops.RootInodeID, Name: "never-existed"})
	assert.NoError(t, err)
}

func TestRmDirDeletesChildrenAndMarker(t *testing.T) {
	gw, fake := newTestFS(t)

	require.NoError(t, gw.MkDir(&fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "dir"}))

	lookupDir := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "dir"}
	require.NoError(t, gw.LookUpInode(lookupDir))
	dirIno := lookupDir.Entry.Child

	require.NoError(t, gw.CreateFile(&fuseops.CreateFileOp{Parent: dirIno, Name: "child.txt"}))

	require.NoError(t, gw.RmDir(&fuseops.RmDirOp{Parent: fuseops.RootInodeID, Name: "dir"}))

	entries, err := fake.List(context.Background(), "dir")
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = gw.LookUpInode(&fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "dir"})
	assert.Equal(t, fuse.ENOENT, err)
}

func TestReadDirListsDotDotDotDotAndChildren(t *testing.T) {
	gw, _ := newTestFS(t)

	require.NoError(t, gw.CreateFile(&fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "a.txt"}))
	require.NoError(t, gw.MkDir(&fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "b"}))

	openOp := &fuseops.OpenDirOp{Inode: fuseops.RootInodeID}
	require.NoError(t, gw.OpenDir(openOp))

	dh := gw.handles[openOp.Handle]
	require.NotNil(t, dh)
	names := make([]string, len(dh.entries))
	for i, e := range dh.entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{".", "..", "a.txt", "b"}, names)

	readOp := &fuseops.ReadDirOp{Inode: fuseops.RootInodeID, Handle: openOp.Handle, Offset: 0, Dst: make([]byte, 4096)}
	require.NoError(t, gw.ReadDir(readOp))
	assert.Greater(t, readOp.BytesRead, 0)

	require.NoError(t, gw.ReleaseDirHandle(&fuseops.ReleaseDirHandleOp{Handle: openOp.Handle}))
}

func TestGetAttrOnRootNeverTouchesStore(t *testing.T) {
	gw, fake := newTestFS(t)
	fake.FailGet = os.ErrClosed

	op := &fuseops.GetInodeAttributesOp{Inode: fuseops.RootInodeID}
	require.NoError(t, gw.GetInodeAttributes(op))
	assert.True(t, op.Attributes.Mode.IsDir())
}

func TestDecryptTamperReturnsEIO(t *testing.T) {
	gw, fake := newTestFS(t)

	require.NoError(t, gw.CreateFile(&fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "f"}))
	writeOp := &fuseops.WriteFileOp{Inode: fs2Ino(t, gw), Data: []byte("hello")}
	require.NoError(t, gw.WriteFile(writeOp))

	sealed, err := fake.Get(context.Background(), "f")
	require.NoError(t, err)
	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF
	fake.Seed("f", tampered)

	readOp := &fuseops.ReadFileOp{Inode: fs2Ino(t, gw), Dst: make([]byte, 64)}
	err = gw.ReadFile(readOp)
	assert.Equal(t, fuse.EIO, err)
}

func TestStorageUnavailableSurfacesAsEIO(t *testing.T) {
	gw, fake := newTestFS(t)
	fake.FailGet = os.ErrClosed

	err := gw.ReadFile(&fuseops.ReadFileOp{Inode: fs2Ino(t, gw), Dst: make([]byte, 16)})
	assert.Equal(t, fuse.EIO, err)
}

// fs2Ino resolves path "f" to its inode directly through the gateway's
// inode table (assigning one if "f" has not been seen yet), so tests
// that need an inode number for that path don't have to hardcode one.
func fs2Ino(t *testing.T, gw *FileSystem) fuseops.InodeID {
	t.Helper()
	return fuseops.InodeID(gw.table.ResolveOrAssign("f"))
}

func TestRootInodeMatchesFuseRootInodeID(t *testing.T) {
	gw, _ := newTestFS(t)
	assert.Equal(t, uint64(inode.RootInode), uint64(fuseops.RootInodeID))
	_ = gw
}
