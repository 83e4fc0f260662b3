// Package signal implements the websocket client for the meeting
// relay: it dials the relay, announces join-room, and translates JSON
// envelopes into typed events for the orchestrator.
package signal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

// EventSink receives decoded relay events. *orch.Orchestrator is the
// production implementation.
type EventSink interface {
	OnIdentityAssigned(id domain.ParticipantID)
	OnJoinPending()
	OnAdmitted()
	OnJoinDenied(reason string)
	OnJoinRequest(id domain.ParticipantID, name string)
	OnPendingList(entries []core.PendingEntry)
	OnRoster(entries []core.RosterEntry)
	OnNewParticipant(e core.RosterEntry)
	OnCreateOffers(id domain.ParticipantID)
	OnOffer(from domain.ParticipantID, offer webrtc.SessionDescription)
	OnAnswer(from domain.ParticipantID, answer webrtc.SessionDescription)
	OnCandidate(from domain.ParticipantID, cand webrtc.ICECandidateInit)
	OnParticipantLeft(id domain.ParticipantID)
	OnEndCall(from domain.ParticipantID)
	OnPermissionUpdate(upd domain.PermissionUpdate)
	OnOwnerAssigned()
	OnKicked()
	OnChat(fromName, text string)
	OnChannelClosed()
}

const writeTimeout = 5 * time.Second

// Client is a relay connection bound to one meeting. It satisfies
// core.SignalSender; see send.go.
type Client struct {
	URL        string
	Meeting    domain.MeetingID
	Name       string
	PingPeriod time.Duration
	ReadLimit  int64

	sink EventSink

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewClient(url string, meeting domain.MeetingID, name string, sink EventSink) *Client {
	return &Client{
		URL:     url,
		Meeting: meeting,
		Name:    name,
		sink:    sink,
	}
}

// Connect dials the relay, announces the join and starts the read and
// ping loops. The loops stop when ctx is cancelled or the connection
// drops; either way the sink sees OnChannelClosed exactly once.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	if c.ReadLimit > 0 {
		conn.SetReadLimit(c.ReadLimit)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.Info().Str("module", "signal").Str("url", c.URL).Str("meeting", string(c.Meeting)).Msg("relay connected")

	if err := c.send(Envelope{Type: "join-room", MeetingID: c.Meeting, Name: c.Name}); err != nil {
		c.Close()
		return err
	}

	go c.readLoop()
	if c.PingPeriod > 0 {
		go c.pingLoop(ctx)
	}
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return nil
}

// Close tears the connection down. Safe to call more than once; only
// the first call notifies the sink.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.sink.OnChannelClosed()
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Msg("readLoop read error")
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("ping write error")
				return
			}
		}
	}
}

func (c *Client) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Kind() {
	case "your-id":
		c.sink.OnIdentityAssigned(env.SocketID)
	case "join-pending":
		c.sink.OnJoinPending()
	case "admitted":
		c.sink.OnAdmitted()
	case "join-denied":
		c.sink.OnJoinDenied(env.DenyReason())
	case "join-request":
		c.sink.OnJoinRequest(env.SocketID, env.Name)
	case "pending-list":
		entries := make([]core.PendingEntry, 0, len(env.Pending))
		for _, p := range env.Pending {
			entries = append(entries, p.pending())
		}
		c.sink.OnPendingList(entries)
	case "existing-participants":
		entries := make([]core.RosterEntry, 0, len(env.Participants))
		for _, p := range env.Participants {
			entries = append(entries, p.roster())
		}
		c.sink.OnRoster(entries)
	case "new-participant":
		if env.SocketID == "" {
			return
		}
		c.sink.OnNewParticipant(core.RosterEntry{
			ID:          env.SocketID,
			Name:        env.Name,
			IsOwner:     env.IsOwner,
			Permissions: env.Permissions,
		})
	case "create-offers":
		c.sink.OnCreateOffers(env.SocketID)
	case "offer":
		if env.From == "" || env.Offer == nil {
			return
		}
		c.sink.OnOffer(env.From, *env.Offer)
	case "answer":
		if env.From == "" || env.Answer == nil {
			return
		}
		c.sink.OnAnswer(env.From, *env.Answer)
	case "ice_candidate", "ice-candidate":
		if env.From == "" || env.Candidate == nil {
			return
		}
		c.sink.OnCandidate(env.From, *env.Candidate)
	case "participant-left":
		c.sink.OnParticipantLeft(env.SocketID)
	case "endcall":
		c.sink.OnEndCall(env.From)
	case "permission-update":
		if env.Permissions == nil {
			return
		}
		c.sink.OnPermissionUpdate(*env.Permissions)
	case "owner-assigned":
		c.sink.OnOwnerAssigned()
	case "you-were-kicked":
		c.sink.OnKicked()
	case "chat-message":
		c.sink.OnChat(env.FromName, env.Text)
	default:
		log.Debug().Str("module", "signal").Str("kind", env.Kind()).Msg("unknown signal, ignored")
	}
}

func (c *Client) send(env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return core.ErrChannelClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}
