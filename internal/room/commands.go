package room

import (
	"context"

	"github.com/coremeet/roomclient/internal/roomerr"
	"github.com/coremeet/roomclient/internal/spotlight"
)

// request issues a signaling request and discards its payload, which is
// the shape every command in this file shares (spec §4.6's outbound
// command surface: fire a signaling request, let the matching
// notification update the store).
func (c *Client) request(ctx context.Context, op, method string, data map[string]any) error {
	if _, err := c.session.SendRequest(ctx, method, data); err != nil {
		return roomerr.New(op, err)
	}
	return nil
}

// ChangeDisplayName renames the local peer. The store update itself
// arrives via the changeDisplayName notification echoed back to every
// peer, including the sender (spec §6).
func (c *Client) ChangeDisplayName(ctx context.Context, displayName string) error {
	return c.request(ctx, "changeDisplayName", "changeDisplayName", map[string]any{"displayName": displayName})
}

// ChangePicture updates the local peer's avatar.
func (c *Client) ChangePicture(ctx context.Context, picture string) error {
	return c.request(ctx, "changePicture", "changePicture", map[string]any{"picture": picture})
}

// ChatMessage broadcasts a chat message to the room.
func (c *Client) ChatMessage(ctx context.Context, text string) error {
	return c.request(ctx, "chatMessage", "chatMessage", map[string]any{"chatMessage": text})
}

// RaiseHand toggles the local peer's raised-hand state.
func (c *Client) RaiseHand(ctx context.Context, raised bool) error {
	return c.request(ctx, "raisedHand", "raisedHand", map[string]any{"raisedHand": raised})
}

// LockRoom and UnlockRoom gate further joins behind the access code.
func (c *Client) LockRoom(ctx context.Context) error {
	return c.request(ctx, "lockRoom", "lockRoom", nil)
}

func (c *Client) UnlockRoom(ctx context.Context) error {
	return c.request(ctx, "unlockRoom", "unlockRoom", nil)
}

// SetAccessCode sets the room's access code.
func (c *Client) SetAccessCode(ctx context.Context, code string) error {
	return c.request(ctx, "setAccessCode", "setAccessCode", map[string]any{"accessCode": code})
}

// SetJoinByAccessCode toggles whether the access code alone admits a peer.
func (c *Client) SetJoinByAccessCode(ctx context.Context, enabled bool) error {
	return c.request(ctx, "setJoinByAccessCode", "setJoinByAccessCode", map[string]any{"joinByAccessCode": enabled})
}

// AddConsentForRecording records the local peer's consent decision for
// being recorded.
func (c *Client) AddConsentForRecording(ctx context.Context, consent bool) error {
	return c.request(ctx, "addConsentForRecording", "addConsentForRecording", map[string]any{"consent": consent})
}

// SetLocalRecording announces a change in the local peer's own
// local-recording state.
func (c *Client) SetLocalRecording(ctx context.Context, state string) error {
	return c.request(ctx, "setLocalRecording", "setLocalRecording", map[string]any{"localRecordingState": state})
}

// PromotePeer admits one lobby peer into the room.
func (c *Client) PromotePeer(ctx context.Context, peerID string) error {
	return c.request(ctx, "promotePeer", "promotePeer", map[string]any{"peerId": peerID})
}

// PromoteAllPeers admits every lobby peer into the room.
func (c *Client) PromoteAllPeers(ctx context.Context) error {
	return c.request(ctx, "promoteAllPeers", "promoteAllPeers", nil)
}

// ClearChat wipes chat history for every peer (moderator action).
func (c *Client) ClearChat(ctx context.Context) error {
	return c.request(ctx, "moderator:clearChat", "moderator:clearChat", nil)
}

// GiveRole and RemoveRole assign or revoke a role on peerID.
func (c *Client) GiveRole(ctx context.Context, peerID, roleID string) error {
	return c.request(ctx, "moderator:giveRole", "moderator:giveRole", map[string]any{"peerId": peerID, "roleId": roleID})
}

func (c *Client) RemoveRole(ctx context.Context, peerID, roleID string) error {
	return c.request(ctx, "moderator:removeRole", "moderator:removeRole", map[string]any{"peerId": peerID, "roleId": roleID})
}

// KickPeer removes peerID from the room.
func (c *Client) KickPeer(ctx context.Context, peerID string) error {
	return c.request(ctx, "moderator:kickPeer", "moderator:kickPeer", map[string]any{"peerId": peerID})
}

// Mute and MuteAll force-mute one peer or every peer.
func (c *Client) Mute(ctx context.Context, peerID string) error {
	return c.request(ctx, "moderator:mute", "moderator:mute", map[string]any{"peerId": peerID})
}

func (c *Client) MuteAll(ctx context.Context) error {
	return c.request(ctx, "moderator:muteAll", "moderator:muteAll", nil)
}

// StopVideo and StopAllVideo force-stop one peer's or every peer's webcam.
func (c *Client) StopVideo(ctx context.Context, peerID string) error {
	return c.request(ctx, "moderator:stopVideo", "moderator:stopVideo", map[string]any{"peerId": peerID})
}

func (c *Client) StopAllVideo(ctx context.Context) error {
	return c.request(ctx, "moderator:stopAllVideo", "moderator:stopAllVideo", nil)
}

// StopScreenSharing and StopAllScreenSharing force-stop screen sharing.
func (c *Client) StopScreenSharing(ctx context.Context, peerID string) error {
	return c.request(ctx, "moderator:stopScreenSharing", "moderator:stopScreenSharing", map[string]any{"peerId": peerID})
}

func (c *Client) StopAllScreenSharing(ctx context.Context) error {
	return c.request(ctx, "moderator:stopAllScreenSharing", "moderator:stopAllScreenSharing", nil)
}

// CloseMeeting ends the room for every peer.
func (c *Client) CloseMeeting(ctx context.Context) error {
	return c.request(ctx, "moderator:closeMeeting", "moderator:closeMeeting", nil)
}

// LowerHand clears peerID's raised-hand state (moderator action).
func (c *Client) LowerHand(ctx context.Context, peerID string) error {
	return c.request(ctx, "moderator:lowerHand", "moderator:lowerHand", map[string]any{"peerId": peerID})
}

// SelectPeer, SetSelectedPeer, DeselectPeer and ClearSelectedPeers manage
// the locally pinned/selected-peers set that feeds the Spotlight
// Selector alongside active-speaker promotion (spec §4.5). Each pushes
// its recomputed spotlight list straight to the Consumer Registry. The
// selection is held by the Selector only: these methods do not write
// store.Room.SelectedPeers, and consumer.Registry.UpdateSpotlights only
// removes peers outside the new spotlight list from it.
func (c *Client) SelectPeer(ctx context.Context, peerID string) {
	c.withSpotlightSelector(ctx, func(sel *spotlight.Selector) []string {
		return sel.AddSelectedPeer(peerID)
	})
}

func (c *Client) SetSelectedPeer(ctx context.Context, peerID string) {
	c.withSpotlightSelector(ctx, func(sel *spotlight.Selector) []string {
		return sel.SetSelectedPeer(peerID)
	})
}

func (c *Client) DeselectPeer(ctx context.Context, peerID string) {
	c.withSpotlightSelector(ctx, func(sel *spotlight.Selector) []string {
		return sel.RemoveSelectedPeer(peerID)
	})
}

func (c *Client) ClearSelectedPeers(ctx context.Context) {
	c.withSpotlightSelector(ctx, func(sel *spotlight.Selector) []string {
		return sel.ClearSelectedPeers()
	})
}

func (c *Client) withSpotlightSelector(ctx context.Context, fn func(*spotlight.Selector) []string) {
	c.mu.Lock()
	sel := c.spotlightSel
	c.mu.Unlock()
	if sel == nil {
		return
	}
	c.consumers.UpdateSpotlights(ctx, fn(sel))
}
