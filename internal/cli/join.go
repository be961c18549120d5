package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/notify"
	"github.com/coremeet/roomclient/internal/notifytext"
	"github.com/coremeet/roomclient/internal/producer"
	"github.com/coremeet/roomclient/internal/room"
	"github.com/coremeet/roomclient/internal/store"
	"github.com/coremeet/roomclient/internal/version"
)

var (
	flagServerURL   string
	flagRoomID      string
	flagDisplayName string
	flagJoinAudio   bool
	flagJoinVideo   bool
	flagSTUNServer  string
)

var joinCmd = &cobra.Command{
	Use:     "join",
	Aliases: []string{"j"},
	Short:   "Join a room and drive it from an interactive prompt",
	Long: `Join connects to a signaling server, enters a room, and drops into an
interactive prompt for controlling the session (mute, webcam, screenshare,
raised hand, spotlight selection, status).

Examples:
  roomclient join --server wss://example.com/signaling --room demo --name Ada
  roomclient join --server wss://example.com/signaling --room demo --name Ada --audio --video`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagServerURL, "server", "s", "", "signaling server websocket URL (required)")
	joinCmd.Flags().StringVarP(&flagRoomID, "room", "r", "", "room id to join (required)")
	joinCmd.Flags().StringVarP(&flagDisplayName, "name", "n", "Guest", "display name")
	joinCmd.Flags().BoolVarP(&flagJoinAudio, "audio", "a", false, "start the microphone on join")
	joinCmd.Flags().BoolVarP(&flagJoinVideo, "video", "v", false, "start the webcam on join")
	joinCmd.Flags().StringVar(&flagSTUNServer, "stun", "", "custom STUN server URL")

	joinCmd.MarkFlagRequired("server")
	joinCmd.MarkFlagRequired("room")
}

func runJoin(ctx context.Context) error {
	rs, err := Connect(flagServerURL, config.Options{STUNServer: flagSTUNServer}, store.BrowserInfo{
		Name:    "roomclient-cli",
		Version: version.Version,
	})
	if err != nil {
		return err
	}
	defer rs.Close()

	go printNotifications(rs.Notifier)

	joinCtx, cancel := context.WithTimeout(ctx, rs.Config.RequestTimeout)
	defer cancel()

	if err := rs.Join(joinCtx, room.JoinOptions{
		RoomID:      flagRoomID,
		DisplayName: flagDisplayName,
		JoinAudio:   flagJoinAudio,
		JoinVideo:   flagJoinVideo,
	}); err != nil {
		return err
	}

	fmt.Printf("joined %q as %q — type \"help\" for commands\n", flagRoomID, flagDisplayName)
	return runREPL(ctx, rs)
}

func printNotifications(notifier *notify.Surface) {
	for n := range notifier.Subscribe() {
		fmt.Println(notifytext.Render(n))
	}
}

const replHelp = `commands:
  mute | unmute            toggle the local microphone
  webcam on|off             start or stop the webcam
  screenshare on|off        start or stop screen sharing
  hand on|off               raise or lower your hand
  select <peerId>           pin a peer into your spotlight set
  deselect <peerId>         unpin a peer
  chat <message>            send a chat message
  status                    print the current room state
  quit                      leave the room and exit`

func runREPL(ctx context.Context, rs *RoomSession) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		rest := fields[1:]

		reqCtx, cancel := context.WithTimeout(ctx, rs.Config.RequestTimeout)
		err := dispatchREPLCommand(reqCtx, rs, cmd, rest)
		cancel()

		switch {
		case err == errQuit:
			return nil
		case err != nil:
			rs.Notifier.Error(err.Error())
		}
	}
	return nil
}

var errQuit = fmt.Errorf("quit")

func dispatchREPLCommand(ctx context.Context, rs *RoomSession, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Println(replHelp)
		return nil
	case "mute":
		return rs.Producers.MuteMic(ctx)
	case "unmute":
		return rs.Producers.UnmuteMic(ctx)
	case "webcam":
		return toggleWebcam(ctx, rs, args)
	case "screenshare":
		return toggleScreenSharing(ctx, rs, args)
	case "hand":
		return toggleHand(ctx, rs, args)
	case "select":
		if len(args) != 1 {
			return fmt.Errorf("usage: select <peerId>")
		}
		rs.Room.SelectPeer(ctx, args[0])
		return nil
	case "deselect":
		if len(args) != 1 {
			return fmt.Errorf("usage: deselect <peerId>")
		}
		rs.Room.DeselectPeer(ctx, args[0])
		return nil
	case "chat":
		if len(args) == 0 {
			return fmt.Errorf("usage: chat <message>")
		}
		return rs.Room.ChatMessage(ctx, strings.Join(args, " "))
	case "status":
		fmt.Println(renderStatus(rs.Store.Snapshot()))
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, type \"help\"", cmd)
	}
}

func toggleWebcam(ctx context.Context, rs *RoomSession, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: webcam on|off")
	}
	if args[0] == "on" {
		return rs.Producers.UpdateWebcam(ctx, producer.UpdateWebcamOptions{Start: true})
	}
	return rs.Producers.DisableWebcam(ctx)
}

func toggleScreenSharing(ctx context.Context, rs *RoomSession, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: screenshare on|off")
	}
	if args[0] == "on" {
		return rs.Producers.UpdateScreenSharing(ctx, producer.UpdateScreenSharingOptions{Start: true})
	}
	return rs.Producers.DisableScreenSharing(ctx)
}

func toggleHand(ctx context.Context, rs *RoomSession, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: hand on|off")
	}
	return rs.Room.RaiseHand(ctx, args[0] == "on")
}
