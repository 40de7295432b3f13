package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/remote"
)

var projectDescription string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects on the codepad server",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the projects of the configured uid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := projectClient()
		if err != nil {
			return err
		}
		projects, err := rc.ListProjects(cmd.Context(), cfg.UID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUPDATED\tDESCRIPTION")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ProjectID, p.Name, p.UpdatedAt.Format("2006-01-02 15:04"), p.Description)
		}
		return w.Flush()
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project with the welcome tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := projectClient()
		if err != nil {
			return err
		}
		p, err := rc.CreateProject(cmd.Context(), cfg.UID, args[0], projectDescription)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.ProjectID)
		return nil
	},
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <project-id> <name>",
	Short: "Rename a project or change its description",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := projectClient()
		if err != nil {
			return err
		}
		return rc.UpdateProject(cmd.Context(), cfg.UID, args[0], args[1], projectDescription)
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and its tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := projectClient()
		if err != nil {
			return err
		}
		return rc.DeleteProject(cmd.Context(), cfg.UID, args[0])
	},
}

var projectDownloadCmd = &cobra.Command{
	Use:   "download <project-id> [out.zip]",
	Short: "Download a project as a zip archive",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := projectClient()
		if err != nil {
			return err
		}
		out := args[0] + "_project.zip"
		if len(args) == 2 {
			out = args[1]
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := rc.Download(cmd.Context(), cfg.UID, args[0], f); err != nil {
			_ = f.Close()
			_ = os.Remove(out)
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", out)
		return nil
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
	projectUpdateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")

	projectCmd.AddCommand(projectListCmd, projectCreateCmd, projectUpdateCmd, projectDeleteCmd, projectDownloadCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectClient() (*remote.Client, error) {
	if cfg.UID == "" {
		return nil, fmt.Errorf("no uid configured: set uid or pass --uid")
	}
	return remoteClient()
}
