package cli

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/coremeet/roomclient/internal/humanize"
	"github.com/coremeet/roomclient/internal/store"
)

// renderStatus formats a Store snapshot as the two tables the `status`
// REPL command prints: one row per peer, one row per local producer.
func renderStatus(snap *store.State) string {
	var out string

	peers := table.NewWriter()
	peers.AppendHeader(table.Row{"Peer", "Name", "Hand", "Consumers"})
	ids := make([]string, 0, len(snap.Peers))
	for id := range snap.Peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := snap.Peers[id]
		hand := ""
		if p.RaisedHand {
			hand = "✋"
		}
		peers.AppendRow(table.Row{p.PeerID, p.DisplayName, hand, len(p.ConsumerIDs)})
	}
	out += fmt.Sprintf("Room %s — %s\n", snap.Room.RoomID, snap.Room.State)
	out += peers.Render() + "\n"

	producers := table.NewWriter()
	producers.AppendHeader(table.Row{"Source", "Kind", "Paused", "Score"})
	sources := make([]store.ProducerSource, 0, len(snap.Producers))
	for src := range snap.Producers {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	for _, src := range sources {
		p := snap.Producers[src]
		producers.AppendRow(table.Row{p.Source, p.Kind, p.Paused, p.Score})
	}
	out += producers.Render()

	if rate, ok := snap.TransportStats["availableOutgoingBitrate"].(float64); ok {
		out += "\nOutgoing bitrate: " + humanize.Bitrate(rate)
	}

	return out
}
