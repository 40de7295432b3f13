// Package treefs exposes a synchronized project tree as a billy.Filesystem,
// so it can be served over NFS, exported to disk or zipped.
package treefs

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/codepad/internal/tree"
)

// TreeFile is the read-only virtual file at the root holding the tree as JSON.
const TreeFile = "_tree.json"

var (
	errReadOnly = errors.New("read-only filesystem")
	errNotEmpty = errors.New("directory not empty")
	errIsDir    = errors.New("is a directory")
)

// Backend is the tree being served. Writes go through it, so they are
// persisted like any other edit.
type Backend interface {
	Tree() *tree.Node
	AddFile(parentID, name, content string) (*tree.Node, error)
	AddFolder(parentID, name string) (*tree.Node, error)
	Rename(id, name string) error
	Delete(id string) error
	UpdateFileContent(fileID, content, language string) error
}

// FS adapts a Backend to billy.Filesystem. Paths are name paths from the root.
type FS struct {
	backend   Backend
	mountTime time.Time
	writable  bool
}

func New(b Backend) *FS {
	return &FS{backend: b, mountTime: time.Now()}
}

// SetWritable enables create, write, rename, remove and mkdir.
func (fs *FS) SetWritable(w bool) { fs.writable = w }

// --- billy.Basic ---

func (fs *FS) Create(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (fs *FS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *FS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)

	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		if !fs.writable {
			return nil, errReadOnly
		}
		return fs.openWritable(filename, flag)
	}

	if filename == "/"+TreeFile {
		return &bytesFile{name: TreeFile, data: fs.treeJSON()}, nil
	}
	n, ok := tree.Resolve(fs.backend.Tree(), filename)
	if !ok {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if n.IsDir() {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errIsDir}
	}
	return &bytesFile{name: filename, data: []byte(n.Content)}, nil
}

// openWritable returns a buffer committed to the tree on Close. Missing files
// are created immediately when O_CREATE is set.
func (fs *FS) openWritable(filename string, flag int) (billy.File, error) {
	if filename == "/"+TreeFile {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errReadOnly}
	}
	root := fs.backend.Tree()
	n, ok := tree.Resolve(root, filename)
	switch {
	case !ok && flag&os.O_CREATE == 0:
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	case !ok:
		parent, found := tree.Resolve(root, path.Dir(filename))
		if !found || !parent.IsDir() {
			return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
		}
		created, err := fs.backend.AddFile(parent.ID, path.Base(filename), "")
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: filename, Err: err}
		}
		n = created
	case flag&os.O_EXCL != 0:
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrExist}
	case n.IsDir():
		return nil, &os.PathError{Op: "open", Path: filename, Err: errIsDir}
	}

	f := &writeFile{id: n.ID, name: filename, onClose: fs.commit}
	if flag&os.O_TRUNC == 0 {
		f.buf = []byte(n.Content)
	}
	if flag&os.O_APPEND != 0 {
		f.pos = int64(len(f.buf))
	}
	return f, nil
}

func (fs *FS) commit(id string, content []byte) error {
	return fs.backend.UpdateFileContent(id, string(content), "")
}

func (fs *FS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

// Rename renames within one directory. Moving a node to another folder is
// not supported.
func (fs *FS) Rename(oldpath, newpath string) error {
	if !fs.writable {
		return errReadOnly
	}
	oldpath, newpath = cleanPath(oldpath), cleanPath(newpath)
	root := fs.backend.Tree()
	n, ok := tree.Resolve(root, oldpath)
	if !ok || n.ID == root.ID {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrNotExist}
	}
	if path.Dir(oldpath) != path.Dir(newpath) {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: billy.ErrNotSupported}
	}
	if err := fs.backend.Rename(n.ID, path.Base(newpath)); err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
	return nil
}

func (fs *FS) Remove(filename string) error {
	if !fs.writable {
		return errReadOnly
	}
	filename = cleanPath(filename)
	root := fs.backend.Tree()
	n, ok := tree.Resolve(root, filename)
	if !ok || n.ID == root.ID {
		return &os.PathError{Op: "remove", Path: filename, Err: os.ErrNotExist}
	}
	if n.IsDir() && len(n.Children) > 0 {
		return &os.PathError{Op: "remove", Path: filename, Err: errNotEmpty}
	}
	return fs.backend.Delete(n.ID)
}

func (fs *FS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *FS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *FS) ReadDir(p string) ([]os.FileInfo, error) {
	p = cleanPath(p)
	n, ok := tree.Resolve(fs.backend.Tree(), p)
	if !ok {
		return nil, &os.PathError{Op: "readdir", Path: p, Err: os.ErrNotExist}
	}
	if !n.IsDir() {
		return nil, &os.PathError{Op: "readdir", Path: p, Err: fmt.Errorf("not a directory")}
	}

	infos := make([]os.FileInfo, 0, len(n.Children)+1)
	if p == "/" {
		infos = append(infos, fs.treeFileInfo())
	}
	for _, c := range n.Children {
		infos = append(infos, fs.nodeInfo(c))
	}
	return infos, nil
}

// MkdirAll creates every missing folder along filename.
func (fs *FS) MkdirAll(filename string, perm os.FileMode) error {
	if !fs.writable {
		return errReadOnly
	}
	filename = cleanPath(filename)
	cur := fs.backend.Tree()
	for _, part := range strings.Split(strings.TrimPrefix(filename, "/"), "/") {
		if part == "" {
			continue
		}
		next, ok := tree.Resolve(cur, part)
		if !ok {
			created, err := fs.backend.AddFolder(cur.ID, part)
			if err != nil {
				return &os.PathError{Op: "mkdir", Path: filename, Err: err}
			}
			next = created
		} else if !next.IsDir() {
			return &os.PathError{Op: "mkdir", Path: filename, Err: tree.ErrNotFolder}
		}
		cur = next
	}
	return nil
}

// --- billy.Symlink ---

func (fs *FS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	if filename == "/"+TreeFile {
		return fs.treeFileInfo(), nil
	}
	n, ok := tree.Resolve(fs.backend.Tree(), filename)
	if !ok {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	info := fs.nodeInfo(n)
	if filename == "/" {
		info.name = "/"
	}
	return info, nil
}

func (fs *FS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *FS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *FS) Chroot(p string) (billy.Filesystem, error) {
	return chroot.New(fs, p), nil
}

func (fs *FS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *FS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if fs.writable {
		caps |= billy.WriteCapability | billy.ReadAndWriteCapability | billy.TruncateCapability
	}
	return caps
}

// --- internals ---

func (fs *FS) treeJSON() []byte {
	b, err := tree.Encode(fs.backend.Tree())
	if err != nil {
		return nil
	}
	return append(b, '\n')
}

func (fs *FS) treeFileInfo() *staticFileInfo {
	return &staticFileInfo{
		name:    TreeFile,
		size:    int64(len(fs.treeJSON())),
		mode:    0o444,
		modTime: fs.mountTime,
	}
}

func (fs *FS) nodeInfo(n *tree.Node) *staticFileInfo {
	mode := os.FileMode(0o444)
	if n.IsDir() {
		mode = os.ModeDir | 0o555
		if fs.writable {
			mode = os.ModeDir | 0o755
		}
	} else if fs.writable {
		mode = 0o644
	}
	modTime := n.UpdatedAt
	if modTime.IsZero() {
		modTime = fs.mountTime
	}
	return &staticFileInfo{
		name:    n.Name,
		size:    int64(len(n.Content)),
		mode:    mode,
		modTime: modTime,
	}
}

// cleanPath normalizes a billy path to a clean absolute slash path.
func cleanPath(p string) string {
	return path.Clean("/" + filepath.ToSlash(p))
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

var (
	_ billy.Filesystem = (*FS)(nil)
	_ billy.Capable    = (*FS)(nil)
)
