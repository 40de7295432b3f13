package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/editor"
)

var (
	runStdin   string
	fixApply   bool
	lintStrict bool
)

var runCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "Execute a file of the tree on the code runner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stdin := runStdin
		if stdin == "-" {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			stdin = string(b)
		}
		return withEditor(cmd.Context(), args[0], func(ctx context.Context, s *editor.Session, id string) error {
			res, err := s.Run(ctx, id, stdin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			if res.Stdout != "" && res.Stderr != "" {
				fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "status: %s  time: %s  memory: %s\n", res.Status, res.Time, res.Memory)
			return nil
		})
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <path>",
	Short: "Ask the assistant to continue a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEditor(cmd.Context(), args[0], func(ctx context.Context, s *editor.Session, id string) error {
			out, err := s.Suggest(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix <path>",
	Short: "Ask the assistant for a corrected version of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEditor(cmd.Context(), args[0], func(ctx context.Context, s *editor.Session, id string) error {
			out, err := s.Fix(ctx, id, fixApply)
			if err != nil {
				return err
			}
			if fixApply {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied fix to %s\n", args[0])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

var lintCmd = &cobra.Command{
	Use:   "lint <path>",
	Short: "Report syntax errors and lint findings for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEditor(cmd.Context(), args[0], func(ctx context.Context, s *editor.Session, id string) error {
			diags, err := s.Lint(id)
			if err != nil {
				return err
			}
			for _, d := range diags {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", args[0], d)
			}
			if lintStrict && len(diags) > 0 {
				return fmt.Errorf("%d issue(s) found", len(diags))
			}
			return nil
		})
	},
}

var fmtCmd = &cobra.Command{
	Use:   "fmt <path>",
	Short: "Format a Go or HCL file in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEditor(cmd.Context(), args[0], func(ctx context.Context, s *editor.Session, id string) error {
			changed, err := s.Format(id)
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintln(cmd.OutOrStdout(), args[0])
			}
			return nil
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runStdin, "stdin", "", "program input; - reads it from stdin")
	fixCmd.Flags().BoolVar(&fixApply, "apply", false, "write the fix back to the file")
	lintCmd.Flags().BoolVar(&lintStrict, "strict", false, "exit non-zero when anything is reported")

	rootCmd.AddCommand(runCmd, suggestCmd, fixCmd, lintCmd, fmtCmd)
}

// withEditor opens the file at p in an editor session over the mounted tree.
func withEditor(ctx context.Context, p string, fn func(ctx context.Context, s *editor.Session, id string) error) error {
	return withEngine(ctx, func(e *session) error {
		n, err := resolveFile(e.Tree(), p)
		if err != nil {
			return err
		}
		opts := []editor.Option{editor.WithLogger(log), editor.WithRunner(newRunner())}
		if cfg.LLMAPIKey != "" {
			opts = append(opts, editor.WithAssistant(newAssistant()))
		}
		s := editor.New(e, opts...)
		if _, err := s.Open(n.ID, n.Name); err != nil {
			return err
		}
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, s, n.ID)
	})
}
