// Package api implements the command dispatcher (component L): a flat,
// typed request/response surface the UI process drives the node through.
// Each exported Dispatcher method is one command from the command surface;
// none partially mutate state on failure, matching the "executes to
// completion atomically or fails" invariant. Grounded on the dependency-
// injected adapter pattern core/invite.Engine and node/wiring.go already
// use: Dispatcher depends only on the narrow interfaces it defines here, so
// it compiles and is testable against fakes without a running transport,
// discovery, or pubsub layer.
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rchat-io/rchat-node/core/invite"
	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/crypto/vault"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/internal/eventbus"
	"github.com/rchat-io/rchat-node/oauth"
	"github.com/rchat-io/rchat-node/store"
)

// Kind is the stable error taxonomy the dispatcher normalizes every failure
// into, so the UI can switch on a fixed set of outcomes instead of parsing
// error strings.
type Kind string

const (
	KindInvalidArgument   Kind = "invalid_argument"
	KindNotFound          Kind = "not_found"
	KindVaultLocked       Kind = "vault_locked"
	KindVaultNotSetUp     Kind = "vault_not_set_up"
	KindInvalidPassword   Kind = "invalid_password"
	KindBackpressure      Kind = "backpressure_exceeded"
	KindNoSession         Kind = "no_session"
	KindIdentityMismatch  Kind = "identity_mismatch"
	KindInviteExpired     Kind = "invite_expired"
	KindUnavailable       Kind = "unavailable"
	KindInternal          Kind = "internal"
)

// Error is the typed failure every Dispatcher method returns in place of a
// bare error, carrying a stable Kind the UI can branch on.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// classify maps a store/vault/invite sentinel to a stable Kind,
// falling back to internal for anything unrecognized.
func classify(err error, fallback Kind) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, "record not found", err)
	case errors.Is(err, vault.ErrVaultLocked):
		return newError(KindVaultLocked, "vault is locked", err)
	case errors.Is(err, vault.ErrVaultNotSetUp):
		return newError(KindVaultNotSetUp, "vault is not set up", err)
	case errors.Is(err, vault.ErrVaultAlreadySetUp):
		return newError(KindInvalidArgument, "vault is already set up", err)
	case errors.Is(err, vault.ErrInvalidPassword):
		return newError(KindInvalidPassword, "incorrect password", err)
	case errors.Is(err, message.ErrNoSession):
		return newError(KindNoSession, "no session with peer", err)
	case errors.Is(err, invite.ErrIdentityMismatch):
		return newError(KindIdentityMismatch, "claimed identity does not match", err)
	case errors.Is(err, invite.ErrInviteExpired):
		return newError(KindInviteExpired, "invite expired", err)
	default:
		return newError(fallback, "unexpected failure", err)
	}
}

// ConnectionRequester dials a peer outside of invite redemption, e.g. to
// re-establish a session with an already-trusted peer. node.ConnectionAdapter
// implements this over the transport host; Dispatcher never imports
// transport directly.
type ConnectionRequester interface {
	RequestConnection(ctx context.Context, peerID identity.PeerID) error
}

// PresenceToggler controls the discovery/online-status side effects of
// set_fast_discovery and toggle_online_status. node.PresenceAdapter
// implements this.
type PresenceToggler interface {
	SetFastDiscovery(enabled bool) error
	SetOnline(enabled bool) error
}

// Dependencies are every collaborator Dispatcher needs, gathered in one
// struct so NewDispatcher's signature doesn't grow with every command.
type Dependencies struct {
	Store             store.Store
	Vault             *vault.Vault
	InviteEngine      *invite.Engine
	MessageDispatcher *message.Dispatcher
	Files             FileService
	Bus               *eventbus.Bus
	Presence          PresenceToggler
	Connections       ConnectionRequester
	DeviceFlow        *oauth.DeviceFlow
}

// Dispatcher implements the command surface (§6.1) against Dependencies.
// It holds no goroutines of its own: every command either returns
// synchronously or hands off to an already-running collaborator.
type Dispatcher struct {
	deps Dependencies

	// netMu guards the four Dependencies fields that don't exist until the
	// vault unlocks and the node starts its networking stack (InviteEngine,
	// MessageDispatcher, Presence, Connections): a running node can unlock,
	// reset, and lock its vault multiple times, each transition tearing
	// down or rebuilding these collaborators out from under in-flight
	// commands. Every other Dependencies field is set once at construction
	// and never mutated, so it's read without a lock like the rest of the
	// package already does.
	netMu sync.RWMutex

	pendingAuth map[string]*oauth.StartResult
	online      bool
}

// NewDispatcher builds a Dispatcher over deps.
func NewDispatcher(deps Dependencies) *Dispatcher {
	return &Dispatcher{deps: deps, pendingAuth: make(map[string]*oauth.StartResult)}
}

// SetNetworkDependencies (re)wires the collaborators that only exist while
// the node's networking stack is running. Passing all-nil tears them down
// (called on vault lock/reset); a command that runs concurrently with this
// call sees either the old or the new set, never a mix.
func (d *Dispatcher) SetNetworkDependencies(inviteEngine *invite.Engine, msgDispatcher *message.Dispatcher, presence PresenceToggler, connections ConnectionRequester) {
	d.netMu.Lock()
	defer d.netMu.Unlock()
	d.deps.InviteEngine = inviteEngine
	d.deps.MessageDispatcher = msgDispatcher
	d.deps.Presence = presence
	d.deps.Connections = connections
}

func (d *Dispatcher) inviteEngine() *invite.Engine {
	d.netMu.RLock()
	defer d.netMu.RUnlock()
	return d.deps.InviteEngine
}

func (d *Dispatcher) messageDispatcher() *message.Dispatcher {
	d.netMu.RLock()
	defer d.netMu.RUnlock()
	return d.deps.MessageDispatcher
}

func (d *Dispatcher) presence() PresenceToggler {
	d.netMu.RLock()
	defer d.netMu.RUnlock()
	return d.deps.Presence
}

func (d *Dispatcher) connections() ConnectionRequester {
	d.netMu.RLock()
	defer d.netMu.RUnlock()
	return d.deps.Connections
}

// AuthStatus is the result of check_auth_status.
type AuthStatus struct {
	IsSetUp    bool `json:"is_setup"`
	IsUnlocked bool `json:"is_unlocked"`
	IsOnline   bool `json:"is_online"`
}

// CheckAuthStatus reports the vault's setup/unlock state plus the last
// requested online mode.
func (d *Dispatcher) CheckAuthStatus() AuthStatus {
	status := d.deps.Vault.Status()
	return AuthStatus{IsSetUp: status.IsSetUp, IsUnlocked: status.IsUnlocked, IsOnline: d.online}
}

// InitVault runs vault setup, creating the node's IdentityKey.
func (d *Dispatcher) InitVault(password string) *Error {
	if password == "" {
		return newError(KindInvalidArgument, "password must not be empty", nil)
	}
	if _, err := d.deps.Vault.Setup(password); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// UnlockVault loads the IdentityKey into the process.
func (d *Dispatcher) UnlockVault(password string) *Error {
	if err := d.deps.Vault.Unlock(password); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// ResetVault wipes the vault record and every piece of identity-dependent
// state: the trust list, message log, and file catalog. Both halves commit
// or neither does: store.WipeAll runs first since it's the harder of the
// two to make idempotent, and a vault.Reset failure after a successful wipe
// would leave stale identity state, which Reset's own error return surfaces
// to the caller to retry.
func (d *Dispatcher) ResetVault(ctx context.Context) *Error {
	if err := d.deps.Store.WipeAll(ctx); err != nil {
		return classify(err, KindInternal)
	}
	if err := d.deps.Vault.Reset(); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// StartGitHubAuth begins the device-authorization flow and remembers the
// result so PollGitHubAuth can resume it by device code.
func (d *Dispatcher) StartGitHubAuth(ctx context.Context) (*oauth.StartResult, *Error) {
	if d.deps.DeviceFlow == nil {
		return nil, newError(KindUnavailable, "github auth is not configured", nil)
	}
	result, err := d.deps.DeviceFlow.Start(ctx)
	if err != nil {
		return nil, newError(KindUnavailable, "failed to start device flow", err)
	}
	d.pendingAuth[result.DeviceCode] = result
	return result, nil
}

// PollGitHubAuth resumes polling for the token tied to deviceCode.
func (d *Dispatcher) PollGitHubAuth(ctx context.Context, deviceCode string) (string, *Error) {
	start, ok := d.pendingAuth[deviceCode]
	if !ok {
		return "", newError(KindInvalidArgument, "unknown device code", nil)
	}
	token, err := d.deps.DeviceFlow.Poll(ctx, start)
	delete(d.pendingAuth, deviceCode)
	if err != nil {
		return "", newError(KindUnavailable, "github auth failed", err)
	}
	return token, nil
}

// SaveAPIToken persists token in the vault, re-sealing under the vault's
// already-loaded key material.
func (d *Dispatcher) SaveAPIToken(token string) *Error {
	if err := d.deps.Vault.SaveAPIToken(token); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}
