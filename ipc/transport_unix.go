//go:build !windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// dialEndpoint opens the unix socket for the given endpoint index.
// The peer places its sockets in the first defined temp directory.
func dialEndpoint(index int, timeout time.Duration) (net.Conn, error) {
	path := filepath.Join(socketDir(), fmt.Sprintf("%s%d", endpointBase, index))
	return net.DialTimeout("unix", path, timeout)
}

// socketDir returns the directory the peer daemon creates its sockets in:
// the first set of XDG_RUNTIME_DIR, TMPDIR, TMP, TEMP, falling back to /tmp.
func socketDir() string {
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" {
			return dir
		}
	}
	return "/tmp"
}
