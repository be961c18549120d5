package room

import (
	"context"
	"encoding/json"

	"github.com/coremeet/roomclient/internal/consumer"
	"github.com/coremeet/roomclient/internal/store"
)

// registerHandlers wires every inbound notification method from spec §6
// into the Dispatcher's table (spec §9 "replace the open-ended
// string→handler switch with a table").
func (c *Client) registerHandlers() {
	c.dispatcher.On("enteredLobby", c.onEnteredLobby)
	c.dispatcher.On("signInRequired", c.onSignInRequired)
	c.dispatcher.On("overRoomLimit", c.onOverRoomLimit)
	c.dispatcher.On("roomReady", c.onRoomReady)
	c.dispatcher.On("roomBack", c.onRoomBack)
	c.dispatcher.On("lockRoom", c.onLockRoom)
	c.dispatcher.On("unlockRoom", c.onUnlockRoom)
	c.dispatcher.On("parkedPeer", c.onParkedPeer)
	c.dispatcher.On("parkedPeers", c.onParkedPeers)
	c.dispatcher.On("lobby:peerClosed", c.onLobbyPeerClosed)
	c.dispatcher.On("lobby:promotedPeer", c.onLobbyPromotedPeer)
	c.dispatcher.On("lobby:changeDisplayName", c.onLobbyChangeDisplayName)
	c.dispatcher.On("lobby:changePicture", c.onLobbyChangePicture)
	c.dispatcher.On("setAccessCode", c.onSetAccessCode)
	c.dispatcher.On("setJoinByAccessCode", c.onSetJoinByAccessCode)
	c.dispatcher.On("activeSpeaker", c.onActiveSpeaker)
	c.dispatcher.On("changeDisplayName", c.onChangeDisplayName)
	c.dispatcher.On("changePicture", c.onChangePicture)
	c.dispatcher.On("raisedHand", c.onRaisedHand)
	c.dispatcher.On("chatMessage", c.onChatMessage)
	c.dispatcher.On("moderator:clearChat", c.onModeratorClearChat)
	c.dispatcher.On("sendFile", c.onSendFile)
	c.dispatcher.On("producerScore", c.onProducerScore)
	c.dispatcher.On("newPeer", c.onNewPeer)
	c.dispatcher.On("peerClosed", c.onPeerClosed)
	c.dispatcher.On("newConsumer", c.onNewConsumer)
	c.dispatcher.On("consumerClosed", c.onConsumerClosed)
	c.dispatcher.On("consumerPaused", c.onConsumerPaused)
	c.dispatcher.On("consumerResumed", c.onConsumerResumed)
	c.dispatcher.On("consumerLayersChanged", c.onConsumerLayersChanged)
	c.dispatcher.On("consumerScore", c.onConsumerScore)
	c.dispatcher.On("moderator:mute", c.onModeratorMute)
	c.dispatcher.On("moderator:stopVideo", c.onModeratorStopVideo)
	c.dispatcher.On("moderator:stopScreenSharing", c.onModeratorStopScreenSharing)
	c.dispatcher.On("moderator:kick", c.onModeratorKick)
	c.dispatcher.On("moderator:lowerHand", c.onModeratorLowerHand)
	c.dispatcher.On("gotRole", c.onGotRole)
	c.dispatcher.On("lostRole", c.onLostRole)
	c.dispatcher.On("addConsentForRecording", c.onAddConsentForRecording)
	c.dispatcher.On("setLocalRecording", c.onSetLocalRecording)
}

func (c *Client) onEnteredLobby(ctx context.Context, data json.RawMessage) error {
	c.store.Dispatch(func(s *store.State) { s.Room.InLobby = true })
	return nil
}

func (c *Client) onSignInRequired(ctx context.Context, data json.RawMessage) error {
	c.store.Dispatch(func(s *store.State) { s.Room.SignInRequired = true })
	return nil
}

func (c *Client) onOverRoomLimit(ctx context.Context, data json.RawMessage) error {
	c.store.Dispatch(func(s *store.State) { s.Room.OverRoomLimit = true })
	return nil
}

type turnServerPayload struct {
	TURNServers []store.TURNServer `json:"turnServers"`
}

func (c *Client) onRoomReady(ctx context.Context, data json.RawMessage) error {
	var payload turnServerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	c.transport.SetTURNServers(payload.TURNServers)
	c.store.Dispatch(func(s *store.State) {
		s.Room.TURNServers = payload.TURNServers
		s.Room.Joined = true
		s.Room.InLobby = false
		s.Room.State = store.RoomStateConnected
	})
	return nil
}

func (c *Client) onRoomBack(ctx context.Context, data json.RawMessage) error {
	c.store.Dispatch(func(s *store.State) { s.Room.State = store.RoomStateConnected })
	return nil
}

func (c *Client) onLockRoom(ctx context.Context, data json.RawMessage) error {
	c.store.Dispatch(func(s *store.State) { s.Room.Locked = true })
	return nil
}

func (c *Client) onUnlockRoom(ctx context.Context, data json.RawMessage) error {
	c.store.Dispatch(func(s *store.State) { s.Room.Locked = false })
	return nil
}

type peerIDPayload struct {
	PeerID string `json:"peerId"`
}

func (c *Client) onParkedPeer(ctx context.Context, data json.RawMessage) error {
	var p peerIDPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if _, ok := s.LobbyPeers[p.PeerID]; !ok {
			s.LobbyPeers[p.PeerID] = &store.Peer{PeerID: p.PeerID}
		}
	})
	return nil
}

func (c *Client) onParkedPeers(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		LobbyPeers []store.Peer `json:"lobbyPeers"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		for _, p := range payload.LobbyPeers {
			peer := p
			s.LobbyPeers[p.PeerID] = &peer
		}
	})
	return nil
}

func (c *Client) onLobbyPeerClosed(ctx context.Context, data json.RawMessage) error {
	var p peerIDPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) { delete(s.LobbyPeers, p.PeerID) })
	return nil
}

func (c *Client) onLobbyPromotedPeer(ctx context.Context, data json.RawMessage) error {
	var p peerIDPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) { delete(s.LobbyPeers, p.PeerID) })
	return nil
}

type lobbyDisplayNamePayload struct {
	PeerID      string `json:"peerId"`
	DisplayName string `json:"displayName"`
}

func (c *Client) onLobbyChangeDisplayName(ctx context.Context, data json.RawMessage) error {
	var p lobbyDisplayNamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if peer, ok := s.LobbyPeers[p.PeerID]; ok {
			peer.DisplayName = p.DisplayName
		}
	})
	return nil
}

type lobbyPicturePayload struct {
	PeerID  string `json:"peerId"`
	Picture string `json:"picture"`
}

func (c *Client) onLobbyChangePicture(ctx context.Context, data json.RawMessage) error {
	var p lobbyPicturePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if peer, ok := s.LobbyPeers[p.PeerID]; ok {
			peer.Picture = p.Picture
		}
	})
	return nil
}

func (c *Client) onSetAccessCode(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		AccessCode string `json:"accessCode"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) { s.Room.AccessCode = payload.AccessCode })
	return nil
}

func (c *Client) onSetJoinByAccessCode(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		JoinByAccessCode bool `json:"joinByAccessCode"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) { s.Room.JoinByAccessCode = payload.JoinByAccessCode })
	return nil
}

// onActiveSpeaker implements spec §4.5/§8 scenario 5: promote the peer
// to spotlight-speaker-list head, recompute spotlights, and push the
// result into the Consumer Registry.
func (c *Client) onActiveSpeaker(ctx context.Context, data json.RawMessage) error {
	var p peerIDPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	c.store.Dispatch(func(s *store.State) { s.Room.ActiveSpeakerID = p.PeerID })

	c.mu.Lock()
	sel := c.spotlightSel
	c.mu.Unlock()
	if sel == nil {
		return nil
	}
	newSpotlights := sel.OnActiveSpeaker(p.PeerID)
	c.consumers.UpdateSpotlights(ctx, newSpotlights)
	return nil
}

type changeDisplayNamePayload struct {
	PeerID         string `json:"peerId"`
	DisplayName    string `json:"displayName"`
	OldDisplayName string `json:"oldDisplayName"`
}

func (c *Client) onChangeDisplayName(ctx context.Context, data json.RawMessage) error {
	var p changeDisplayNamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if peer, ok := s.Peers[p.PeerID]; ok {
			peer.DisplayName = p.DisplayName
		}
	})
	return nil
}

type changePicturePayload struct {
	PeerID  string `json:"peerId"`
	Picture string `json:"picture"`
}

func (c *Client) onChangePicture(ctx context.Context, data json.RawMessage) error {
	var p changePicturePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if peer, ok := s.Peers[p.PeerID]; ok {
			peer.Picture = p.Picture
		}
	})
	return nil
}

type raisedHandPayload struct {
	PeerID              string `json:"peerId"`
	RaisedHand          bool   `json:"raisedHand"`
	RaisedHandTimestamp int64  `json:"raisedHandTimestamp"`
}

func (c *Client) onRaisedHand(ctx context.Context, data json.RawMessage) error {
	var p raisedHandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if peer, ok := s.Peers[p.PeerID]; ok {
			peer.RaisedHand = p.RaisedHand
		}
	})
	return nil
}

type chatMessagePayload struct {
	PeerID      string `json:"peerId"`
	ChatMessage string `json:"chatMessage"`
}

func (c *Client) onChatMessage(ctx context.Context, data json.RawMessage) error {
	var p chatMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		s.ChatHistory = append(s.ChatHistory, store.ChatMessage{PeerID: p.PeerID, Text: p.ChatMessage})
	})
	return nil
}

func (c *Client) onModeratorClearChat(ctx context.Context, data json.RawMessage) error {
	c.store.Dispatch(func(s *store.State) { s.ChatHistory = nil })
	return nil
}

type sendFilePayload struct {
	PeerID   string `json:"peerId"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

func (c *Client) onSendFile(ctx context.Context, data json.RawMessage) error {
	var p sendFilePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		s.FileHistory = append(s.FileHistory, store.FileAnnouncement{PeerID: p.PeerID, Name: p.Name, Size: p.Size, MimeType: p.MimeType})
	})
	return nil
}

type producerScorePayload struct {
	ProducerID string `json:"producerId"`
	Score      int    `json:"score"`
}

func (c *Client) onProducerScore(ctx context.Context, data json.RawMessage) error {
	var p producerScorePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		for _, prod := range s.Producers {
			if prod.ID == p.ProducerID {
				prod.Score = p.Score
			}
		}
		for _, prod := range s.ExtraProducers {
			if prod.ID == p.ProducerID {
				prod.Score = p.Score
			}
		}
	})
	return nil
}

type newPeerPayload struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Picture     string   `json:"picture"`
	Roles       []string `json:"roles"`
	Returning   bool     `json:"returning"`
}

func (c *Client) onNewPeer(ctx context.Context, data json.RawMessage) error {
	var p newPeerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	roles := make(map[string]bool, len(p.Roles))
	for _, r := range p.Roles {
		roles[r] = true
	}
	c.store.Dispatch(func(s *store.State) {
		s.Peers[p.ID] = &store.Peer{PeerID: p.ID, DisplayName: p.DisplayName, Picture: p.Picture, Roles: roles}
	})

	c.mu.Lock()
	sel := c.spotlightSel
	c.mu.Unlock()
	if sel != nil {
		newSpotlights := sel.OnPeerJoined(p.ID)
		c.consumers.UpdateSpotlights(ctx, newSpotlights)
	}
	return nil
}

func (c *Client) onPeerClosed(ctx context.Context, data json.RawMessage) error {
	var p peerIDPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) { delete(s.Peers, p.PeerID) })

	c.mu.Lock()
	sel := c.spotlightSel
	c.mu.Unlock()
	if sel != nil {
		newSpotlights := sel.OnPeerLeft(p.PeerID)
		c.consumers.UpdateSpotlights(ctx, newSpotlights)
	}
	return nil
}

type newConsumerPayload struct {
	PeerID         string                 `json:"peerId"`
	ProducerID     string                 `json:"producerId"`
	ID             string                 `json:"id"`
	Kind           store.MediaKind        `json:"kind"`
	RTPParameters  map[string]any         `json:"rtpParameters"`
	Type           store.ConsumerType     `json:"type"`
	AppData        map[string]any         `json:"appData"`
	ProducerPaused bool                   `json:"producerPaused"`
	Score          int                    `json:"score"`
}

func (c *Client) onNewConsumer(ctx context.Context, data json.RawMessage) error {
	var p newConsumerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	source, _ := p.AppData["source"].(string)

	return c.consumers.OnNewConsumer(ctx, consumer.NewConsumerNotification{
		PeerID:         p.PeerID,
		ProducerID:     p.ProducerID,
		ConsumerID:     p.ID,
		Kind:           p.Kind,
		RTPParameters:  p.RTPParameters,
		Type:           p.Type,
		Source:         store.ProducerSource(source),
		ProducerPaused: p.ProducerPaused,
		Score:          p.Score,
	})
}

type consumerIDPayload struct {
	ConsumerID string `json:"consumerId"`
}

func (c *Client) onConsumerClosed(ctx context.Context, data json.RawMessage) error {
	var p consumerIDPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.consumers.OnConsumerClosed(p.ConsumerID)
	return nil
}

func (c *Client) onConsumerPaused(ctx context.Context, data json.RawMessage) error {
	var p consumerIDPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if cc, ok := s.Consumers[p.ConsumerID]; ok {
			cc.RemotelyPaused = true
		}
	})
	return nil
}

func (c *Client) onConsumerResumed(ctx context.Context, data json.RawMessage) error {
	var p consumerIDPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if cc, ok := s.Consumers[p.ConsumerID]; ok {
			cc.RemotelyPaused = false
		}
	})
	return nil
}

type consumerLayersPayload struct {
	ConsumerID    string `json:"consumerId"`
	SpatialLayer  int    `json:"spatialLayer"`
	TemporalLayer int    `json:"temporalLayer"`
}

func (c *Client) onConsumerLayersChanged(ctx context.Context, data json.RawMessage) error {
	var p consumerLayersPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if cc, ok := s.Consumers[p.ConsumerID]; ok {
			cc.SpatialLayers = p.SpatialLayer
			cc.TemporalLayers = p.TemporalLayer
		}
	})
	return nil
}

type consumerScorePayload struct {
	ConsumerID string `json:"consumerId"`
	Score      int    `json:"score"`
}

func (c *Client) onConsumerScore(ctx context.Context, data json.RawMessage) error {
	var p consumerScorePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if cc, ok := s.Consumers[p.ConsumerID]; ok {
			cc.Score = p.Score
		}
	})
	return nil
}

// onModeratorMute implements spec §8 scenario 4: inbound
// moderator:mute pauses the mic locally and notifies the SFU, and the
// Notification Surface surfaces the moderator action.
func (c *Client) onModeratorMute(ctx context.Context, data json.RawMessage) error {
	if err := c.producers.MuteMic(ctx); err != nil {
		return err
	}
	c.notifier.Info("Moderator muted your audio")
	return nil
}

func (c *Client) onModeratorStopVideo(ctx context.Context, data json.RawMessage) error {
	if err := c.producers.DisableWebcam(ctx); err != nil {
		return err
	}
	c.notifier.Info("Moderator stopped your video")
	return nil
}

func (c *Client) onModeratorStopScreenSharing(ctx context.Context, data json.RawMessage) error {
	if err := c.producers.DisableScreenSharing(ctx); err != nil {
		return err
	}
	c.notifier.Info("Moderator stopped your screen sharing")
	return nil
}

func (c *Client) onModeratorKick(ctx context.Context, data json.RawMessage) error {
	c.notifier.Warning("You have been removed from the room by a moderator")
	c.Close()
	return nil
}

func (c *Client) onModeratorLowerHand(ctx context.Context, data json.RawMessage) error {
	c.store.Dispatch(func(s *store.State) { s.Me.RaisedHand = false })
	return nil
}

type rolePayload struct {
	PeerID string `json:"peerId"`
	RoleID string `json:"roleId"`
}

func (c *Client) onGotRole(ctx context.Context, data json.RawMessage) error {
	var p rolePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if peer, ok := s.Peers[p.PeerID]; ok {
			if peer.Roles == nil {
				peer.Roles = map[string]bool{}
			}
			peer.Roles[p.RoleID] = true
		}
	})
	return nil
}

func (c *Client) onLostRole(ctx context.Context, data json.RawMessage) error {
	var p rolePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if peer, ok := s.Peers[p.PeerID]; ok {
			delete(peer.Roles, p.RoleID)
		}
	})
	return nil
}

type consentPayload struct {
	PeerID  string `json:"peerId"`
	Consent bool   `json:"consent"`
}

func (c *Client) onAddConsentForRecording(ctx context.Context, data json.RawMessage) error {
	var p consentPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	// The Peer type carries no consent field, so there's nowhere in the
	// store to persist this per-peer; log it and surface it as a
	// notification instead of silently dropping it.
	c.store.Dispatch(func(s *store.State) {
		if peer, ok := s.Peers[p.PeerID]; ok {
			c.logger.Info("recording consent", "peer", peer.PeerID, "consent", p.Consent)
		}
	})
	if p.Consent {
		c.notifier.Info("A participant consented to recording")
	}
	return nil
}

type localRecordingPayload struct {
	PeerID              string                     `json:"peerId"`
	LocalRecordingState store.LocalRecordingState `json:"localRecordingState"`
}

func (c *Client) onSetLocalRecording(ctx context.Context, data json.RawMessage) error {
	var p localRecordingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.store.Dispatch(func(s *store.State) {
		if peer, ok := s.Peers[p.PeerID]; ok {
			peer.LocalRecordingState = p.LocalRecordingState
		}
	})
	return nil
}
