package api

import (
	"context"
	"time"

	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/internal/eventbus"
	"github.com/rchat-io/rchat-node/store"
)

const selfChatID = "self"

// GetChatHistory returns every message in chatID's log, oldest first.
func (d *Dispatcher) GetChatHistory(ctx context.Context, chatID string) ([]*store.ChatMessage, *Error) {
	msgs, err := d.deps.Store.Messages().History(ctx, chatID)
	if err != nil {
		return nil, classify(err, KindInternal)
	}
	return msgs, nil
}

// SendMessage seals and queues a text message to peerID, persisting it as
// pending before handing it to the session dispatcher: the message survives
// a crash between acceptance and delivery, and the caller's msg_id is
// already durable when this call returns.
func (d *Dispatcher) SendMessage(ctx context.Context, peerID, text string) (string, *Error) {
	id, err := message.NewID()
	if err != nil {
		return "", newError(KindInternal, "generate message id", err)
	}

	record := &store.ChatMessage{
		MsgID:        id.String(),
		ChatID:       peerID,
		Direction:    store.DirectionOut,
		SenderPeerID: "",
		ContentType:  store.ContentText,
		Text:         text,
		CreatedAt:    time.Now(),
		Status:       store.StatusPending,
	}
	if err := d.deps.Store.Messages().Insert(ctx, record); err != nil {
		return "", classify(err, KindInternal)
	}

	env := message.Envelope{MsgID: id, ContentType: message.ContentText, Text: text}
	msgDispatcher := d.messageDispatcher()
	if msgDispatcher == nil {
		// No networking yet: the record stays pending in the store for the
		// outbox to pick up once the dispatcher is wired and a session
		// opens, same as a live dispatcher queuing to an offline peer.
		return record.MsgID, nil
	}

	// Send only enqueues onto the peer's outbox; the outbox's own retry
	// ladder (core/message/outbox.go) handles an absent or dropped session,
	// so a send error here means the outbox itself rejected the envelope
	// (closed peer, canceled context), not that the peer is offline.
	hadSession := msgDispatcher.HasSession(peerID)
	if err := msgDispatcher.Send(ctx, peerID, env); err != nil {
		classified := classify(err, KindInternal)
		if updErr := d.deps.Store.Messages().UpdateStatus(ctx, record.MsgID, store.StatusFailed); updErr != nil {
			return "", classify(updErr, KindInternal)
		}
		return "", classified
	}
	if !hadSession {
		// No live session to queue against yet: the record stays pending
		// rather than reporting sent, and is delivered once one opens.
		return record.MsgID, nil
	}

	if err := d.deps.Store.Messages().UpdateStatus(ctx, record.MsgID, store.StatusSent); err != nil {
		return "", classify(err, KindInternal)
	}
	if d.deps.Bus != nil {
		d.deps.Bus.Publish(eventbus.KindMessageStatusUpdated,
			messageStatusUpdatedPayload{MsgID: record.MsgID, Status: string(store.StatusSent)})
	}
	return record.MsgID, nil
}

// SendMessageToSelf appends text to the node's own "self" chat, with no
// network send: this is the note-to-self / saved-messages chat.
func (d *Dispatcher) SendMessageToSelf(ctx context.Context, text string) *Error {
	id, err := message.NewID()
	if err != nil {
		return newError(KindInternal, "generate message id", err)
	}
	record := &store.ChatMessage{
		MsgID:       id.String(),
		ChatID:      selfChatID,
		Direction:   store.DirectionOut,
		ContentType: store.ContentText,
		Text:        text,
		CreatedAt:   time.Now(),
		Status:      store.StatusRead,
	}
	if err := d.deps.Store.Messages().Insert(ctx, record); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// MarkMessagesRead advances every message in chatID's history to read.
// UpdateStatus's monotonic-forward-only guard makes repeated calls and
// already-read messages no-ops rather than errors.
func (d *Dispatcher) MarkMessagesRead(ctx context.Context, chatID string) *Error {
	msgs, err := d.deps.Store.Messages().History(ctx, chatID)
	if err != nil {
		return classify(err, KindInternal)
	}
	for _, m := range msgs {
		if err := d.deps.Store.Messages().UpdateStatus(ctx, m.MsgID, store.StatusRead); err != nil {
			return classify(err, KindInternal)
		}
	}
	return nil
}

// messageStatusUpdatedPayload is the payload carried by a
// eventbus.KindMessageStatusUpdated event.
type messageStatusUpdatedPayload struct {
	MsgID  string `json:"msg_id"`
	Status string `json:"status"`
}
