// Package debug contains optional utilities for inspecting client traffic.
package debug

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
)

var dumpConfig = &spew.ConfigState{Indent: " ", DisableMethods: true}

// PrintPacket writes a hex/ascii dump of a raw packet to w. direction labels
// the dump, e.g. "client->server".
func PrintPacket(w io.Writer, direction string, data []byte) {
	fmt.Fprintf(w, "[%s] %d bytes\n", direction, len(data))
	dumpConfig.Fdump(w, data)
}
