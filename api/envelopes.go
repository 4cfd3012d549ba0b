package api

import (
	"context"
	"time"

	"github.com/rchat-io/rchat-node/store"
)

// EnvelopeView is the UI-facing shape of an envelope (chat folder).
type EnvelopeView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// GetEnvelopes lists every chat folder.
func (d *Dispatcher) GetEnvelopes(ctx context.Context) ([]EnvelopeView, *Error) {
	envs, err := d.deps.Store.Envelopes().List(ctx)
	if err != nil {
		return nil, classify(err, KindInternal)
	}
	out := make([]EnvelopeView, len(envs))
	for i, e := range envs {
		out[i] = EnvelopeView{ID: e.ID, Name: e.Name, Icon: e.Icon}
	}
	return out, nil
}

// CreateEnvelope adds a new chat folder.
func (d *Dispatcher) CreateEnvelope(ctx context.Context, id, name, icon string) *Error {
	if id == "" || name == "" {
		return newError(KindInvalidArgument, "id and name are required", nil)
	}
	env := &store.Envelope{ID: id, Name: name, Icon: icon, CreatedAt: time.Now()}
	if err := d.deps.Store.Envelopes().Create(ctx, env); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// UpdateEnvelope changes an existing chat folder's name/icon.
func (d *Dispatcher) UpdateEnvelope(ctx context.Context, id, name, icon string) *Error {
	env := &store.Envelope{ID: id, Name: name, Icon: icon}
	if err := d.deps.Store.Envelopes().Update(ctx, env); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// DeleteEnvelope removes a chat folder; its members move to the root bucket.
func (d *Dispatcher) DeleteEnvelope(ctx context.Context, id string) *Error {
	if err := d.deps.Store.Envelopes().Delete(ctx, id); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// GetChatAssignments maps every chat (peer) to its envelope, omitting chats
// in the root bucket (empty EnvelopeID).
func (d *Dispatcher) GetChatAssignments(ctx context.Context) (map[string]string, *Error) {
	peers, err := d.deps.Store.Peers().List(ctx)
	if err != nil {
		return nil, classify(err, KindInternal)
	}
	out := make(map[string]string)
	for _, p := range peers {
		if p.EnvelopeID != "" {
			out[p.PeerID] = p.EnvelopeID
		}
	}
	return out, nil
}

// MoveChatToEnvelope reassigns chatID to envelopeID, or back to the root
// bucket when envelopeID is nil.
func (d *Dispatcher) MoveChatToEnvelope(ctx context.Context, chatID string, envelopeID *string) *Error {
	target := ""
	if envelopeID != nil {
		target = *envelopeID
	}
	if err := d.deps.Store.Peers().SetEnvelope(ctx, chatID, target); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// GetChatLatestTimes maps chat_id to its last message's unix time.
func (d *Dispatcher) GetChatLatestTimes(ctx context.Context) (map[string]int64, *Error) {
	times, err := d.deps.Store.Messages().LatestTimes(ctx)
	if err != nil {
		return nil, classify(err, KindInternal)
	}
	return times, nil
}
