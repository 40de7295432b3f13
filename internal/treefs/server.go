package treefs

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"

	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// handleCacheSize bounds the NFS file handles kept per server. Handles map
// to name paths, so a renamed node gets a new one.
const handleCacheSize = 4096

// Server exports one session tree over NFSv3 to clients on this machine.
type Server struct {
	fs       *FS
	listener net.Listener
	port     int
}

// NewServer listens on addr and serves fs until Close. An empty addr picks
// an ephemeral port on all interfaces.
func NewServer(fs *FS, addr string) (*Server, error) {
	if addr == "" {
		addr = ":0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for tree export on %s: %w", addr, err)
	}
	s := &Server{fs: fs, listener: ln, port: ln.Addr().(*net.TCPAddr).Port}

	handler := nfshelper.NewCachingHandler(nfshelper.NewNullAuthHandler(fs), handleCacheSize)
	go func() { _ = nfs.Serve(ln, handler) }()
	return s, nil
}

// Port is the TCP port clients pass as both port and mountport.
func (s *Server) Port() int { return s.port }

// Writable reports whether clients may change the tree.
func (s *Server) Writable() bool { return s.fs.writable }

// Close stops accepting NFS connections. The tree itself is untouched.
func (s *Server) Close() error { return s.listener.Close() }

// mountArgs builds the sudo mount invocation for the tree served on port.
// Local locking keeps the client from asking for a lock manager the
// server does not run.
func mountArgs(goos string, port int, mountpoint string, writable bool) ([]string, error) {
	var opts string
	switch goos {
	case "darwin":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport", port, port)
		if !writable {
			opts += ",rdonly"
		}
	case "linux":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,local_lock=all,nolock", port, port)
		if !writable {
			opts += ",ro"
		}
	default:
		return nil, fmt.Errorf("mounting a tree is not supported on %s", goos)
	}
	return []string{"mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint}, nil
}

// Mount attaches the tree served on port at mountpoint. It shells out to
// sudo mount, so it may prompt for a password.
func Mount(port int, mountpoint string, writable bool) error {
	args, err := mountArgs(runtime.GOOS, port, mountpoint, writable)
	if err != nil {
		return err
	}
	out, err := exec.Command("sudo", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount tree at %s: %w\n%s", mountpoint, err, out)
	}
	return nil
}

// Unmount detaches a tree mounted by Mount.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		// user NFS mounts can usually be released without sudo
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	out, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount tree at %s: %w\n%s", mountpoint, err, out)
	}
	return nil
}
