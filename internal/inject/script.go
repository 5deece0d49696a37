package inject

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
)

// ReloadPath is the control endpoint the injected script connects to.
const ReloadPath = "/__hrserve/reload"

// MarkerAttr tags the injected script element.
const MarkerAttr = "data-hrserve-reload"

// ReloadURL returns the WebSocket URL of the control endpoint for a server
// bound to host:port. Wildcard hosts are replaced with localhost since a
// browser cannot connect to them.
func ReloadURL(host string, port int) string {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "localhost"
	}

	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + ReloadPath
}

// Script renders the reload client for a server bound to host:port. The
// browser reloads the page on the first message it receives.
func Script(host string, port int) string {
	// json.Marshal escapes <, > and & so the URL cannot close the element.
	url, _ := json.Marshal(ReloadURL(host, port))

	return fmt.Sprintf(`
(function () {
  var socket = new WebSocket(%s);
  socket.onmessage = function () {
    window.location.reload();
  };
})();
`, url)
}
