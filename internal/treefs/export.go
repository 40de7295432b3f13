package treefs

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/codepad/internal/tree"
)

// Export writes every node of root below dir on dst. Existing files are
// overwritten; nothing is removed.
func Export(dst billy.Filesystem, dir string, root *tree.Node) error {
	return exportChildren(dst, dir, root)
}

func exportChildren(dst billy.Filesystem, dir string, n *tree.Node) error {
	if err := dst.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for _, c := range n.Children {
		p := dst.Join(dir, c.Name)
		if c.IsDir() {
			if err := exportChildren(dst, p, c); err != nil {
				return err
			}
			continue
		}
		if err := util.WriteFile(dst, p, []byte(c.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}

// Import builds a tree named rootName from the directory dir on src.
func Import(src billy.Filesystem, dir, rootName string) (*tree.Node, error) {
	root := tree.Default(rootName)
	if err := importDir(src, dir, root); err != nil {
		return nil, err
	}
	return root, nil
}

func importDir(src billy.Filesystem, dir string, parent *tree.Node) error {
	infos, err := src.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, fi := range infos {
		p := src.Join(dir, fi.Name())
		switch {
		case fi.IsDir():
			folder := tree.NewFolder(fi.Name())
			if err := importDir(src, p, folder); err != nil {
				return err
			}
			parent.Children = append(parent.Children, folder)
		case fi.Mode().IsRegular():
			b, err := util.ReadFile(src, p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			parent.Children = append(parent.Children, tree.NewFile(fi.Name(), string(b)))
		}
	}
	return nil
}

// WriteZip writes root as a zip archive. Entries are name paths under the
// root's name, folders included so empty folders survive.
func WriteZip(w io.Writer, root *tree.Node) error {
	zw := zip.NewWriter(w)
	base := root.Name
	if base == "" {
		base = tree.DefaultRootName
	}
	var werr error
	var visit func(n *tree.Node, dir string) bool
	visit = func(n *tree.Node, dir string) bool {
		for _, c := range n.Children {
			p := path.Join(dir, c.Name)
			if c.IsDir() {
				if _, werr = zw.CreateHeader(zipHeader(p+"/", c, os.ModeDir|0o755)); werr != nil {
					return false
				}
				if !visit(c, p) {
					return false
				}
				continue
			}
			var fw io.Writer
			if fw, werr = zw.CreateHeader(zipHeader(p, c, 0o644)); werr != nil {
				return false
			}
			if _, werr = io.WriteString(fw, c.Content); werr != nil {
				return false
			}
		}
		return true
	}
	visit(root, base)
	if werr != nil {
		_ = zw.Close()
		return fmt.Errorf("zip: %w", werr)
	}
	return zw.Close()
}

func zipHeader(name string, n *tree.Node, mode os.FileMode) *zip.FileHeader {
	h := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if n.IsDir() {
		h.Method = zip.Store
	}
	if !n.UpdatedAt.IsZero() {
		h.Modified = n.UpdatedAt
	}
	h.SetMode(mode)
	return h
}
