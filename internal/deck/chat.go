package deck

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/claw-deck/internal/openclaw"
)

// ChatResult is the outcome of one SendChat call.
type ChatResult struct {
	SessionKey string                 `json:"sessionKey" yaml:"sessionKey"`
	Sent       Entry                  `json:"sent" yaml:"sent"`
	Reply      *Entry                 `json:"reply,omitempty" yaml:"reply,omitempty"`
	Raw        *openclaw.MessageReply `json:"-" yaml:"-"`
}

// SendChat runs one agent turn. The user's message enters the transcript as
// pending before the CLI is invoked and is marked sent or failed afterwards;
// the agent's reply is appended on success.
func (d *Deck) SendChat(ctx context.Context, req openclaw.MessageRequest) (*ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("message is required")
	}
	if !d.limiter.Allow() {
		return nil, ErrRateLimited
	}

	key := TranscriptKey(req.SessionID, req.AgentID)
	sent := Entry{
		ID:         uuid.NewString(),
		SessionKey: key,
		Role:       RoleUser,
		Text:       req.Message,
		Status:     StatusPending,
		At:         time.Now(),
	}
	d.transcript.Append(sent)

	reply, err := d.cli.SendMessage(ctx, req)
	if err != nil {
		d.transcript.Update(key, sent.ID, func(e *Entry) {
			e.Status = StatusFailed
			e.Error = err.Error()
		})
		d.logger.Warn("chat send failed", "session", key, "error", err)
		return nil, err
	}

	d.transcript.Update(key, sent.ID, func(e *Entry) { e.Status = StatusSent })
	sent.Status = StatusSent

	res := &ChatResult{SessionKey: key, Sent: sent, Raw: reply}
	if strings.TrimSpace(reply.Text) != "" {
		agentEntry := Entry{
			ID:         uuid.NewString(),
			SessionKey: key,
			Role:       RoleAgent,
			Sender:     req.AgentID,
			Text:       reply.Text,
			Status:     StatusReceived,
			At:         time.Now(),
		}
		d.transcript.Append(agentEntry)
		res.Reply = &agentEntry
	}
	return res, nil
}
