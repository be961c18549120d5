// Command roomclient joins a signaling-server room and drives it from
// an interactive terminal session.
package main

import (
	"github.com/coremeet/roomclient/internal/cli"
	"github.com/coremeet/roomclient/internal/logging"
)

func main() {
	logging.Init()
	cli.Execute()
}
