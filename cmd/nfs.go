package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/syncer"
	"github.com/agentic-research/codepad/internal/treefs"
)

var (
	nfsAddr     string
	nfsWritable bool
)

// MountMetadata describes a running tree mount. It is kept in a sidecar
// file beside the mount point so `nfs list` can find live mounts.
type MountMetadata struct {
	PID        int       `json:"pid"`
	UID        string    `json:"uid,omitempty"`
	ProjectID  string    `json:"project_id,omitempty"`
	MountPoint string    `json:"mount_point"`
	Port       int       `json:"port"`
	Writable   bool      `json:"writable"`
	Timestamp  time.Time `json:"timestamp"`
}

var nfsCmd = &cobra.Command{
	Use:   "nfs",
	Short: "Serve the session tree over NFSv3",
}

var nfsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an NFS server for the tree until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveTree(cmd, "")
	},
}

var nfsMountCmd = &cobra.Command{
	Use:   "mount [mountpoint]",
	Short: "Serve the tree and mount it locally (needs sudo)",
	Long: `Without a mountpoint a directory under $TMPDIR/codepad is created, named
after the session. Writable mounts persist edits through the sync engine.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var mp string
		if len(args) == 1 {
			mp = args[0]
		} else {
			dir, err := mountsDir()
			if err != nil {
				return err
			}
			mp = filepath.Join(dir, mountName())
		}
		if err := os.MkdirAll(mp, 0o755); err != nil {
			return fmt.Errorf("create mountpoint: %w", err)
		}
		return serveTree(cmd, mp)
	},
}

var nfsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live codepad mounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mounts, err := listActiveMounts()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PID\tMOUNT\tPORT\tPROJECT\tWRITABLE")
		for _, m := range mounts {
			project := m.ProjectID
			if project == "" {
				project = "(guest)"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%v\n", m.PID, m.MountPoint, m.Port, project, m.Writable)
		}
		return w.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{nfsServeCmd, nfsMountCmd} {
		c.Flags().BoolVarP(&nfsWritable, "writable", "w", false, "accept writes")
	}
	nfsServeCmd.Flags().StringVar(&nfsAddr, "addr", ":0", "listen address")

	nfsCmd.AddCommand(nfsServeCmd, nfsMountCmd, nfsListCmd)
	rootCmd.AddCommand(nfsCmd)
}

// serveTree serves the session tree and, when mountpoint is set, mounts it.
// It blocks until SIGINT or SIGTERM.
func serveTree(cmd *cobra.Command, mountpoint string) error {
	return withEngine(cmd.Context(), func(s *session) error {
		fs := treefs.New(s)
		fs.SetWritable(nfsWritable)

		addr := nfsAddr
		if mountpoint != "" {
			addr = "localhost:0"
		}
		srv, err := treefs.NewServer(fs, addr)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		fmt.Fprintf(cmd.OutOrStdout(), "NFS server on port %d (writable=%v)\n", srv.Port(), nfsWritable)

		if mountpoint != "" {
			if err := treefs.Mount(srv.Port(), mountpoint, nfsWritable); err != nil {
				return err
			}
			meta := &MountMetadata{
				PID:        os.Getpid(),
				MountPoint: mountpoint,
				Port:       srv.Port(),
				Writable:   nfsWritable,
				Timestamp:  time.Now(),
			}
			if s.Mode() == syncer.AuthBacked {
				meta.UID, meta.ProjectID = cfg.UID, cfg.ProjectID
			}
			if err := saveMountMetadata(mountpoint, meta); err != nil {
				log.WithError(err).Warn("could not write mount metadata")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mounted at %s\n", mountpoint)
			defer func() {
				if err := treefs.Unmount(mountpoint); err != nil {
					log.WithError(err).Warn("unmount failed")
				}
				_ = os.Remove(sidecarPath(mountpoint))
			}()
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)
		<-sig
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down")
		return nil
	})
}

// mountName is "<project>-<hash>" for the session, "guest-<hash>" otherwise.
func mountName() string {
	base := "guest"
	key := cfg.LocalStore
	if cfg.ProjectID != "" {
		base = cfg.ProjectID
		key = cfg.UID + "/" + cfg.ProjectID
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(hash[:3]))
}

func mountsDir() (string, error) {
	dir := filepath.Join(os.TempDir(), "codepad")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// sidecarPath sits beside the mount point, not inside it.
func sidecarPath(mountPoint string) string {
	return strings.TrimRight(mountPoint, string(os.PathSeparator)) + ".meta.json"
}

func saveMountMetadata(mountPoint string, meta *MountMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath(mountPoint), data, 0o644)
}

// listActiveMounts scans the sidecars in the mounts directory and keeps
// those whose process is still alive.
func listActiveMounts() ([]*MountMetadata, error) {
	dir, err := mountsDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var mounts []*MountMetadata
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var meta MountMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if !isProcessRunning(meta.PID) {
			continue
		}
		mounts = append(mounts, &meta)
	}
	return mounts, nil
}

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 probes liveness.
	return process.Signal(syscall.Signal(0)) == nil
}
