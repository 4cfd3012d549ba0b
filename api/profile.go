package api

import (
	"context"
)

// Profile is the UI-facing shape of get_user_profile's result: both fields
// are optional, matching the command surface's {alias?, avatar_ref?}.
type Profile struct {
	Alias     *string `json:"alias,omitempty"`
	AvatarRef *string `json:"avatar_ref,omitempty"`
}

// GetUserProfile returns the node's own display identity.
func (d *Dispatcher) GetUserProfile(ctx context.Context) (Profile, *Error) {
	p, err := d.deps.Store.Profile().Get(ctx)
	if err != nil {
		return Profile{}, classify(err, KindInternal)
	}
	out := Profile{}
	if p.Alias != "" {
		out.Alias = &p.Alias
	}
	if p.AvatarRef != "" {
		out.AvatarRef = &p.AvatarRef
	}
	return out, nil
}

// UpdateUserProfile merges alias/avatarRef into the stored profile; a nil
// field leaves the existing value untouched.
func (d *Dispatcher) UpdateUserProfile(ctx context.Context, alias, avatarRef *string) *Error {
	current, err := d.deps.Store.Profile().Get(ctx)
	if err != nil {
		return classify(err, KindInternal)
	}
	updated := *current
	if alias != nil {
		updated.Alias = *alias
	}
	if avatarRef != nil {
		updated.AvatarRef = *avatarRef
	}
	if err := d.deps.Store.Profile().Set(ctx, &updated); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}
