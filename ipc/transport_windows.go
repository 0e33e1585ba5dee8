//go:build windows

package ipc

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialEndpoint opens the named pipe for the given endpoint index.
// go-winio returns a net.Conn with working deadlines, which keeps the
// frame-reading code identical across platforms.
func dialEndpoint(index int, timeout time.Duration) (net.Conn, error) {
	path := fmt.Sprintf(`\\.\pipe\%s%d`, endpointBase, index)
	return winio.DialPipe(path, &timeout)
}
