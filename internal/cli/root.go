// Package cli is the command-line adapter around the Room Client: a
// thin cobra shell that wires flags to config.Options, opens one
// session, and drives it from an interactive command loop. Grounded on
// the teacher's cli/cmd package (root.go's Execute/signal-handling
// shape, send.go's flag-to-config wiring).
package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/coremeet/roomclient/internal/notify"
	"github.com/coremeet/roomclient/internal/notifytext"
	"github.com/coremeet/roomclient/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "roomclient",
	Short:   "Join and drive a multiparty SFU room from the command line",
	Long: `roomclient is a command-line Room Client: it joins a signaling-server
room, negotiates WebRTC transports with the SFU, and exposes mic/webcam/
screen-share/spotlight controls as an interactive session.`,
	Version: version.Version,
}

// Execute runs rootCmd; subcommands attach themselves to it in their own
// init functions. Called once from cmd/roomclient/main.go.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func printError(text string) {
	fmt.Println(notifytext.Render(notify.Notification{Text: text, Category: notify.CategoryError}))
}
