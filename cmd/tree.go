package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/lint"
	"github.com/agentic-research/codepad/internal/tree"
)

var (
	treeJSON    bool
	treeForce   bool
	treeContent string
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Inspect and edit the project tree of the current session",
	Long: `Every tree command mounts the session tree, applies its change and waits
for the change to be persisted before exiting. Without uid, project and
remote configured the local guest workspace is used.`,
}

var treeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(s *session) error {
			if treeJSON {
				b, err := tree.Encode(s.Tree())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			printTree(cmd.OutOrStdout(), s.Tree(), 0)
			return nil
		})
	},
}

var treeCatCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print the content of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(s *session) error {
			n, err := resolveFile(s.Tree(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), n.Content)
			return nil
		})
	},
}

var treeWriteCmd = &cobra.Command{
	Use:   "write <path> [source-file]",
	Short: "Replace a file's content from a local file or stdin, creating the file if needed",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var src io.Reader = cmd.InOrStdin()
		if len(args) == 2 && args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			src = f
		}
		body, err := io.ReadAll(src)
		if err != nil {
			return fmt.Errorf("read content: %w", err)
		}
		if !treeForce {
			if verr := lint.Validate(body, tree.Language(path.Base(args[0]))); verr != nil {
				return fmt.Errorf("%s: %w (use --force to write anyway)", args[0], verr)
			}
		}
		return withEngine(cmd.Context(), func(s *session) error {
			n, ok := tree.Resolve(s.Tree(), args[0])
			if !ok {
				parent, name, err := resolveParent(s.Tree(), args[0])
				if err != nil {
					return err
				}
				_, err = s.AddFile(parent.ID, name, string(body))
				return err
			}
			if n.IsDir() {
				return fmt.Errorf("%w: %s", tree.ErrNotFile, args[0])
			}
			return s.UpdateFileContent(n.ID, string(body), "")
		})
	},
}

var treeAddFileCmd = &cobra.Command{
	Use:   "add-file <path>",
	Short: "Create a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(s *session) error {
			parent, name, err := resolveParent(s.Tree(), args[0])
			if err != nil {
				return err
			}
			n, err := s.AddFile(parent.ID, name, treeContent)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.ID)
			return nil
		})
	},
}

var treeAddFolderCmd = &cobra.Command{
	Use:   "add-folder <path>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(s *session) error {
			parent, name, err := resolveParent(s.Tree(), args[0])
			if err != nil {
				return err
			}
			n, err := s.AddFolder(parent.ID, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.ID)
			return nil
		})
	},
}

var treeRenameCmd = &cobra.Command{
	Use:   "rename <path> <new-name>",
	Short: "Rename a file or folder in place",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(s *session) error {
			n, err := resolveNode(s.Tree(), args[0])
			if err != nil {
				return err
			}
			return s.Rename(n.ID, args[1])
		})
	},
}

var treeRmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file or a folder with everything below it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(s *session) error {
			n, err := resolveNode(s.Tree(), args[0])
			if err != nil {
				return err
			}
			return s.Delete(n.ID)
		})
	},
}

var treeQueryCmd = &cobra.Command{
	Use:   "query <jsonpath>",
	Short: "List nodes matching a JSONPath selector",
	Example: `  codepad tree query "$..children[?(@.language == 'python')]"
  codepad tree query "$..children[?(@.type == 'folder')]"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(s *session) error {
			root := s.Tree()
			nodes, err := tree.Query(root, args[0])
			if err != nil {
				return err
			}
			for _, n := range nodes {
				p, _ := tree.PathOf(root, n.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "/%s\t%s\n", p, n.ID)
			}
			return nil
		})
	},
}

func init() {
	treeShowCmd.Flags().BoolVar(&treeJSON, "json", false, "print the canonical JSON encoding")
	treeWriteCmd.Flags().BoolVarP(&treeForce, "force", "f", false, "write content that does not parse")
	treeAddFileCmd.Flags().StringVar(&treeContent, "content", "", "initial content")

	treeCmd.AddCommand(treeShowCmd, treeCatCmd, treeWriteCmd, treeAddFileCmd,
		treeAddFolderCmd, treeRenameCmd, treeRmCmd, treeQueryCmd)
	rootCmd.AddCommand(treeCmd)
}

// withEngine mounts the session tree, runs fn and flushes before returning.
func withEngine(ctx context.Context, fn func(s *session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openEngine(ctx)
	if err != nil {
		return err
	}
	runErr := fn(s)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.SaveTimeout()+5*time.Second)
	defer cancel()
	if err := s.Close(closeCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("persist changes: %w", err)
	}
	return runErr
}

func printTree(w io.Writer, n *tree.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.IsDir() {
		fmt.Fprintf(w, "%s%s/\n", indent, n.Name)
		for _, c := range n.Children {
			printTree(w, c, depth+1)
		}
		return
	}
	fmt.Fprintf(w, "%s%s\t[%s, %d bytes]\n", indent, n.Name, n.Language, len(n.Content))
}

func resolveNode(root *tree.Node, p string) (*tree.Node, error) {
	n, ok := tree.Resolve(root, p)
	if !ok {
		return nil, fmt.Errorf("%w: %s", tree.ErrNotFound, p)
	}
	return n, nil
}

func resolveFile(root *tree.Node, p string) (*tree.Node, error) {
	n, err := resolveNode(root, p)
	if err != nil {
		return nil, err
	}
	if n.IsDir() {
		return nil, fmt.Errorf("%w: %s", tree.ErrNotFile, p)
	}
	return n, nil
}

// resolveParent splits p and resolves its folder.
func resolveParent(root *tree.Node, p string) (*tree.Node, string, error) {
	dir, name := path.Split(strings.Trim(path.Clean("/"+p), "/"))
	parent, err := resolveNode(root, dir)
	if err != nil {
		return nil, "", err
	}
	if !parent.IsDir() {
		return nil, "", fmt.Errorf("%w: %s", tree.ErrNotFolder, dir)
	}
	return parent, name, nil
}
