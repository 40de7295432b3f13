package cmd

import (
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/tree"
	"github.com/agentic-research/codepad/internal/treefs"
)

var (
	exportZip  string
	importInto string
)

var exportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Write the session tree to a directory, or to a zip with --zip",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportZip == "" && len(args) == 0 {
			return fmt.Errorf("give a target directory or --zip <file>")
		}
		return withEngine(cmd.Context(), func(s *session) error {
			root := s.Tree()
			if exportZip != "" {
				f, err := os.Create(exportZip)
				if err != nil {
					return err
				}
				if err := treefs.WriteZip(f, root); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			}
			return treefs.Export(osfs.New(args[0]), "/", root)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Copy a local directory into the session tree",
	Long: `Every entry of dir is added below --into (default the root). Names that
already exist in the target folder are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := treefs.Import(osfs.New(args[0]), "/", "")
		if err != nil {
			return err
		}
		return withEngine(cmd.Context(), func(s *session) error {
			parent, err := resolveNode(s.Tree(), importInto)
			if err != nil {
				return err
			}
			if !parent.IsDir() {
				return fmt.Errorf("%w: %s", tree.ErrNotFolder, importInto)
			}
			added := 0
			for _, c := range src.Children {
				if err := s.Insert(parent.ID, c); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skip %s: %v\n", c.Name, err)
					continue
				}
				added++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d entries\n", added, len(src.Children))
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportZip, "zip", "", "write a zip archive instead of a directory")
	importCmd.Flags().StringVar(&importInto, "into", "/", "folder of the tree to import into")
	rootCmd.AddCommand(exportCmd, importCmd)
}
