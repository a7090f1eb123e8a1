package websocket

import (
	"encoding/json"

	"github.com/Martin-Hayot/auctionhub/pkg/errors"
	"github.com/charmbracelet/log"
)

// Feed event types.
const (
	EventJobRun         = "job_run"
	EventAuctionCreated = "auction_created"
	EventAuctionDeleted = "auction_deleted"
	EventAuctionsPurged = "auctions_purged"
	EventBackupCreated  = "backup_created"
	EventPong           = "pong"
)

type Message struct {
	Type string          `json:"type"`           // Type of the message (e.g., "job_run", "ping")
	Data json.RawMessage `json:"data,omitempty"` // Payload of the message
}

// ParseMessage validates and parses incoming messages.
func ParseMessage(rawMessage []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(rawMessage, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errors.New(errors.ErrBadMessageFormat, "missing message type")
	}
	return &msg, nil
}

// HandleMessage answers client messages. The feed is push-only apart from pings.
func (h *Hub) HandleMessage(client *Client, rawMessage []byte) {
	if !client.RateLimiter.Allow() {
		log.Warn("Rate limit exceeded", "client", client.ID)
		client.TrySend([]byte(errors.New(errors.ErrRateLimited, "Rate limit exceeded").ToJSON()))
		return
	}

	msg, err := ParseMessage(rawMessage)
	if err != nil {
		log.Info("Invalid message", "client", client.ID, "error", err)
		client.TrySend([]byte(errors.New(errors.ErrBadMessageFormat, "Invalid message format").ToJSON()))
		return
	}

	switch msg.Type {
	case "ping":
		client.TrySend([]byte(`{"type":"` + EventPong + `"}`))
	default:
		log.Debug("Unknown message type", "client", client.ID, "type", msg.Type)
		client.TrySend([]byte(errors.New(errors.ErrUnknownMessageType, "Unknown message type").ToJSON()))
	}
}
