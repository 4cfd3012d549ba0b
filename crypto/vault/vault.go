package vault

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sagecrypto "github.com/rchat-io/rchat-node/crypto"
	"github.com/rchat-io/rchat-node/crypto/keys"
	"github.com/rchat-io/rchat-node/identity"
)

// Errors in the node identity vault's own taxonomy (distinct from the
// per-key FileVault/MemoryVault sentinels in secure_storage.go: this is the single
// setup/unlock/reset lifecycle the rest of the node talks to).
var (
	ErrVaultNotSetUp     = errors.New("vault: not set up")
	ErrVaultAlreadySetUp = errors.New("vault: already set up")
	ErrVaultLocked       = errors.New("vault: locked")
	ErrInvalidPassword   = errors.New("vault: invalid password")
)

// identityRecordKey is the single key ID the node identity vault stores its
// sealed secret bundle under, inside whichever backing vault (file or
// memory) it was constructed with.
const identityRecordKey = "identity"

// secretBundle is the plaintext protected by the vault record: the node's
// IdentityKey private half, plus an optional bearer token for whatever
// external API the node has been paired with.
type secretBundle struct {
	IdentityPrivateKey []byte `json:"identity_priv"`
	APIToken           string `json:"api_token,omitempty"`
}

// backingVault is the subset of FileVault/MemoryVault the identity vault
// needs; it lets Vault be constructed over either backend.
type backingVault interface {
	StoreEncrypted(keyID string, key []byte, passphrase string) error
	LoadDecrypted(keyID, passphrase string) ([]byte, error)
	Exists(keyID string) bool
	Delete(keyID string) error
}

// Status is the result of Vault.Status: whether a vault record exists on
// this node at all, and whether it is currently unlocked in this process.
type Status struct {
	IsSetUp    bool
	IsUnlocked bool
}

// Vault is the node's single password-protected identity store: it owns at
// most one IdentityKey, created at setup and destroyed only by Reset.
type Vault struct {
	mu sync.Mutex

	backing backingVault

	identity    sagecrypto.KeyPair
	peerID      identity.PeerID
	apiToken    string
	password    string
	unlocked    bool
	onAuthState func(Status)
}

// NewFileBacked builds a Vault persisted under dir (its record is dir/identity.json).
func NewFileBacked(dir string) (*Vault, error) {
	fv, err := NewFileVault(dir)
	if err != nil {
		return nil, err
	}
	return &Vault{backing: fv}, nil
}

// NewMemoryBacked builds an ephemeral Vault with no persistence, used in
// tests and for "run without a vault file" modes.
func NewMemoryBacked() *Vault {
	return &Vault{backing: NewMemoryVault()}
}

// OnAuthStateChange registers a callback invoked with the current Status
// after every successful Setup, Unlock, and Reset (the "auth-status" event
// in the node's command/event bridge).
func (v *Vault) OnAuthStateChange(fn func(Status)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onAuthState = fn
}

// Status reports whether a vault record exists and whether this process has
// it unlocked.
func (v *Vault) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statusLocked()
}

func (v *Vault) statusLocked() Status {
	return Status{IsSetUp: v.backing.Exists(identityRecordKey), IsUnlocked: v.unlocked}
}

func (v *Vault) notify() {
	if v.onAuthState != nil {
		v.onAuthState(v.statusLocked())
	}
}

// Setup generates a new IdentityKey, seals it (plus an empty API token)
// under password, and persists the vault record. Fails if a record already
// exists.
func (v *Vault) Setup(password string) (identity.PeerID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.backing.Exists(identityRecordKey) {
		return "", ErrVaultAlreadySetUp
	}

	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return "", fmt.Errorf("vault: generate identity key: %w", err)
	}
	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return "", fmt.Errorf("vault: generated identity key has unexpected type")
	}

	bundle := secretBundle{IdentityPrivateKey: priv}
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("vault: marshal secret bundle: %w", err)
	}

	if err := v.backing.StoreEncrypted(identityRecordKey, plaintext, password); err != nil {
		return "", fmt.Errorf("vault: store identity record: %w", err)
	}

	peerID, err := identity.FromEd25519PublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return "", err
	}

	v.identity = kp
	v.peerID = peerID
	v.password = password
	v.unlocked = true
	v.notify()
	return peerID, nil
}

// Unlock re-derives the KEK from password, decrypts the vault record, and
// loads the IdentityKey into the process for its lifetime. On authentication
// failure it returns ErrInvalidPassword without indicating which half (KDF
// or AEAD tag) failed.
func (v *Vault) Unlock(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.backing.Exists(identityRecordKey) {
		return ErrVaultNotSetUp
	}

	plaintext, err := v.backing.LoadDecrypted(identityRecordKey, password)
	if err != nil {
		if errors.Is(err, ErrInvalidPassphrase) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("vault: load identity record: %w", err)
	}

	var bundle secretBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return fmt.Errorf("vault: unmarshal secret bundle: %w", err)
	}

	kp, err := keys.NewEd25519KeyPairFromPrivateKey(ed25519.PrivateKey(bundle.IdentityPrivateKey))
	if err != nil {
		return fmt.Errorf("vault: reconstruct identity key: %w", err)
	}

	peerID, err := identity.FromEd25519PublicKey(kp.PublicKey().(ed25519.PublicKey))
	if err != nil {
		return err
	}

	v.identity = kp
	v.peerID = peerID
	v.apiToken = bundle.APIToken
	v.password = password
	v.unlocked = true
	v.notify()
	return nil
}

// SaveAPIToken re-seals the secret bundle with token added, using the
// passphrase captured at Setup/Unlock time rather than asking the caller to
// resupply it: the password never crosses this call's boundary.
func (v *Vault) SaveAPIToken(token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.unlocked {
		return ErrVaultLocked
	}

	priv, ok := v.identity.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return fmt.Errorf("vault: identity key has unexpected type")
	}

	bundle := secretBundle{IdentityPrivateKey: priv, APIToken: token}
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("vault: marshal secret bundle: %w", err)
	}
	if err := v.backing.StoreEncrypted(identityRecordKey, plaintext, v.password); err != nil {
		return fmt.Errorf("vault: store identity record: %w", err)
	}
	v.apiToken = token
	return nil
}

// APIToken returns the currently loaded bearer token, if any. Requires the
// vault to be unlocked.
func (v *Vault) APIToken() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return "", ErrVaultLocked
	}
	return v.apiToken, nil
}

// IdentityKeyPair returns the loaded IdentityKey. Requires the vault to be
// unlocked.
func (v *Vault) IdentityKeyPair() (sagecrypto.KeyPair, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return nil, ErrVaultLocked
	}
	return v.identity, nil
}

// PeerID returns the node's canonical PeerID. Requires the vault to be
// unlocked.
func (v *Vault) PeerID() (identity.PeerID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return "", ErrVaultLocked
	}
	return v.peerID, nil
}

// Reset erases the vault record and every piece of state that depends on
// identity, returning the node to its pre-setup state. The caller is
// responsible for having already confirmed this destructive action; Reset
// itself does not prompt.
func (v *Vault) Reset(dependentPaths ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.backing.Exists(identityRecordKey) {
		if err := v.backing.Delete(identityRecordKey); err != nil {
			return fmt.Errorf("vault: delete identity record: %w", err)
		}
	}

	for _, p := range dependentPaths {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("vault: remove dependent state %q: %w", filepath.Clean(p), err)
		}
	}

	v.identity = nil
	v.peerID = ""
	v.apiToken = ""
	v.password = ""
	v.unlocked = false
	v.notify()
	return nil
}
