package node

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rchat-io/rchat-node/api"
	"github.com/rchat-io/rchat-node/config"
	"github.com/rchat-io/rchat-node/core/file"
	"github.com/rchat-io/rchat-node/core/handshake"
	"github.com/rchat-io/rchat-node/core/invite"
	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/core/message/validator"
	"github.com/rchat-io/rchat-node/core/session"
	scrypto "github.com/rchat-io/rchat-node/crypto"
	"github.com/rchat-io/rchat-node/crypto/vault"
	"github.com/rchat-io/rchat-node/discovery"
	"github.com/rchat-io/rchat-node/health"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/identity/did"
	"github.com/rchat-io/rchat-node/internal/eventbus"
	"github.com/rchat-io/rchat-node/internal/logger"
	"github.com/rchat-io/rchat-node/internal/metrics"
	"github.com/rchat-io/rchat-node/oauth"
	"github.com/rchat-io/rchat-node/pubsub"
	"github.com/rchat-io/rchat-node/store"
	"github.com/rchat-io/rchat-node/transport"
)

// sessionManagerConfig is the default session policy new handshakes use.
var sessionManagerConfig = session.DefaultConfig

const (
	// fastDiscoveryInterval is how often a node republishes its rendezvous
	// record while fast discovery is on, well under the steady-state
	// discovery.MinPublishInterval floor that RunPublishLoop enforces.
	fastDiscoveryInterval = 10 * time.Second
	// fastDiscoveryTimeout is the longest fast discovery stays on without an
	// explicit disable, matching the "add person" modal's own timeout.
	fastDiscoveryTimeout = 5 * time.Minute
	// untrustedPeerLogInterval throttles the protocol event emitted for a
	// repeat handshake attempt from the same untrusted peer, the same
	// debounce shape core/file.ProgressReporter uses per file hash.
	untrustedPeerLogInterval = time.Minute
)

// Node is the composition root: it owns every long-lived collaborator and
// sequences the two lifecycles a running node actually has — the process
// lifecycle (config, store, vault, bridge, health) which exists from Start
// to Stop, and the networking lifecycle (transport, discovery, sessions,
// invite/message/file protocols), which only exists between the vault's
// first unlock and a subsequent Reset.
type Node struct {
	cfg *config.Config
	log logger.Logger

	vault      *vault.Vault
	store      store.Store
	bus        *eventbus.Bus
	blobs      *file.LocalBlobStore
	didAnchor  did.Anchor
	dispatcher *api.Dispatcher
	bridge     *api.Bridge
	health     *health.HealthChecker

	bridgeSrv *http.Server
	healthSrv *http.Server

	// netMu guards everything below: the networking stack is built once,
	// on the vault's first unlock, and torn down on vault.Reset. A vault
	// never relocks in place (Setup/Unlock only ever move it forward), so
	// there is at most one start/stop cycle per process run in practice,
	// but the guard keeps a concurrent Reset-then-unlock sequence honest.
	netMu         sync.Mutex
	authWatched   bool
	started       bool
	cancelNet     context.CancelFunc
	identityKey   scrypto.KeyPair
	host          *transport.Host
	ps            *pubsub.PubSub
	mdnsSvc       *discovery.MDNS
	rendezvous    *discovery.RendezvousClient
	sessions      *session.Manager
	msgDispatcher *message.Dispatcher
	transfer      *file.Transfer
	responder     *file.Responder
	inviteEngine  *invite.Engine
	validator     *validator.MessageValidator
	fastDiscovery bool
	fastCancel    context.CancelFunc

	untrustedMu   sync.Mutex
	untrustedSeen map[string]time.Time
}

// NewNode builds every pre-network collaborator: the vault, store, blob
// store, health checker, and command dispatcher are all usable before the
// vault is ever unlocked, matching the node's real startup order (a UI
// process must be able to ask check_auth_status/init_vault/unlock_vault
// before any identity, and therefore any networking, exists).
func NewNode(cfg *config.Config, log logger.Logger) (*Node, error) {
	v, err := vault.NewFileBacked(cfg.Vault.Directory)
	if err != nil {
		return nil, fmt.Errorf("node: open vault: %w", err)
	}

	st, err := store.Open(context.Background(), cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("node: open store: %w", err)
	}

	blobs, err := file.NewLocalBlobStore(cfg.Files.BlobRoot)
	if err != nil {
		return nil, fmt.Errorf("node: open blob store: %w", err)
	}

	anchor, err := did.New(cfg.DID)
	if err != nil {
		return nil, fmt.Errorf("node: build did anchor: %w", err)
	}

	bus := eventbus.New()

	n := &Node{
		cfg:           cfg,
		log:           log,
		vault:         v,
		store:         st,
		bus:           bus,
		blobs:         blobs,
		didAnchor:     anchor,
		untrustedSeen: make(map[string]time.Time),
	}

	n.health = health.NewHealthChecker(5 * time.Second)
	n.health.SetLogger(log)
	n.health.RegisterCheck("vault", health.VaultHealthCheck(func() error {
		if !n.vault.Status().IsUnlocked {
			return fmt.Errorf("vault is locked")
		}
		return nil
	}))
	n.health.RegisterCheck("store", health.StoreHealthCheck(n.store.Ping))
	n.health.RegisterCheck("transport", health.TransportHealthCheck(func() error {
		n.netMu.Lock()
		defer n.netMu.Unlock()
		if n.host == nil {
			return fmt.Errorf("transport not started")
		}
		if len(n.host.Addrs()) == 0 {
			return fmt.Errorf("transport listening on no addresses")
		}
		return nil
	}))
	n.health.RegisterCheck("discovery", health.DiscoveryHealthCheck("mdns", func(ctx context.Context, name string) error {
		n.netMu.Lock()
		defer n.netMu.Unlock()
		if n.mdnsSvc == nil {
			return fmt.Errorf("%s not running", name)
		}
		return nil
	}))
	if cfg.DID != nil && cfg.DID.Network != "" {
		n.health.RegisterCheck("did-anchor", health.DIDAnchorHealthCheck(func(ctx context.Context) error {
			if n.didAnchor == nil {
				return fmt.Errorf("did anchor not configured")
			}
			return n.didAnchor.Ping(ctx)
		}))
	}

	var deviceFlow *oauth.DeviceFlow
	if clientID := githubClientID(); clientID != "" {
		deviceFlow = oauth.NewDeviceFlow(oauth.Config{ClientID: clientID})
	}

	n.dispatcher = api.NewDispatcher(api.Dependencies{
		Store:      st,
		Vault:      v,
		Files:      blobs,
		Bus:        bus,
		DeviceFlow: deviceFlow,
	})
	n.bridge = api.NewBridge(n.dispatcher, bus, log)

	return n, nil
}

// Dispatcher exposes the node's command surface, e.g. for a one-shot CLI
// invocation that never calls Start.
func (n *Node) Dispatcher() *api.Dispatcher {
	return n.dispatcher
}

// watchAuthState wires the vault's unlock/reset transitions to the
// networking lifecycle. Safe to call more than once; only the first call
// installs the observer.
func (n *Node) watchAuthState(ctx context.Context) {
	n.netMu.Lock()
	if n.authWatched {
		n.netMu.Unlock()
		return
	}
	n.authWatched = true
	n.netMu.Unlock()

	n.vault.OnAuthStateChange(func(status vault.Status) {
		n.bus.Publish(eventbus.KindAuthStatus, status)
		if status.IsUnlocked {
			go func() {
				if err := n.startNetworking(ctx); err != nil {
					n.log.Error("node: start networking failed", logger.Error(err))
				}
			}()
			return
		}
		if !status.IsSetUp {
			n.stopNetworking()
		}
	})
}

// UnlockAndAwaitNetwork unlocks the vault and blocks until the networking
// stack finishes starting (or timeout elapses), for one-shot callers — such
// as a CLI invocation — that need the invite engine wired before issuing a
// single command, without running the node's own HTTP servers.
func (n *Node) UnlockAndAwaitNetwork(ctx context.Context, password string, timeout time.Duration) error {
	n.watchAuthState(ctx)
	if apiErr := n.dispatcher.UnlockVault(password); apiErr != nil {
		return apiErr
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n.netMu.Lock()
		ready := n.started
		n.netMu.Unlock()
		if ready {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("node: networking did not start within %s", timeout)
}

// Start brings the node fully up: the command bridge and health/metrics
// endpoints come up immediately, while the networking stack waits for the
// vault's first unlock.
func (n *Node) Start(ctx context.Context) error {
	n.watchAuthState(ctx)

	ln, err := net.Listen("tcp", bridgeAddr())
	if err != nil {
		return fmt.Errorf("node: listen for command bridge: %w", err)
	}
	n.bridgeSrv = &http.Server{Handler: n.bridge.Handler()}
	go func() {
		if err := n.bridgeSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			n.log.Error("node: command bridge server failed", logger.Error(err))
		}
	}()
	n.log.Info("node: command bridge listening", logger.String("addr", ln.Addr().String()))

	if n.cfg.Metrics != nil && n.cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(fmt.Sprintf(":%d", n.cfg.Metrics.Port)); err != nil && err != http.ErrServerClosed {
				n.log.Error("node: metrics server failed", logger.Error(err))
			}
		}()
	}

	if n.cfg.Health != nil && n.cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc(n.cfg.Health.Path, n.handleHealthHTTP)
		n.healthSrv = &http.Server{Addr: fmt.Sprintf(":%d", n.cfg.Health.Port), Handler: mux}
		go func() {
			if err := n.healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				n.log.Error("node: health server failed", logger.Error(err))
			}
		}()
	}

	return nil
}

func (n *Node) handleHealthHTTP(w http.ResponseWriter, r *http.Request) {
	sys := n.health.GetSystemHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if sys.Status != health.StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(sys)
}

// Stop tears the node down: networking first, then the process-lifetime
// servers and the store.
func (n *Node) Stop() error {
	n.stopNetworking()

	if n.bridgeSrv != nil {
		n.bridgeSrv.Close()
	}
	if n.healthSrv != nil {
		n.healthSrv.Close()
	}
	n.bridge.Close()
	n.bus.Close()
	return n.store.Close()
}

func githubClientID() string {
	return os.Getenv("RCHAT_GITHUB_CLIENT_ID")
}

// bridgeAddr is the loopback address the command bridge listens on. The UI
// process is always a sibling on the same machine, so this is never
// exposed beyond loopback; it has no entry in config.Config because it
// isn't node behavior a deployer tunes, only a fixed local contract between
// the node process and its UI.
func bridgeAddr() string {
	if addr := os.Getenv("RCHAT_BRIDGE_ADDR"); addr != "" {
		return addr
	}
	return "127.0.0.1:7417"
}

// startNetworking builds the transport, discovery, session, and protocol
// stack once the vault is unlocked, and wires the dispatcher's
// network-dependent collaborators in. Safe to call more than once; only
// the first call after a reset does anything.
func (n *Node) startNetworking(ctx context.Context) error {
	n.netMu.Lock()
	if n.started {
		n.netMu.Unlock()
		return nil
	}
	n.netMu.Unlock()

	kp, err := n.vault.IdentityKeyPair()
	if err != nil {
		return fmt.Errorf("node: load identity key: %w", err)
	}
	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return fmt.Errorf("node: identity key has unexpected type")
	}

	netCtx, cancel := context.WithCancel(ctx)

	host, err := transport.New(netCtx, priv, transport.Config{}, n.log)
	if err != nil {
		cancel()
		return fmt.Errorf("node: start transport: %w", err)
	}

	sessions := session.NewManager(n.log, sessionManagerConfig)
	msgDispatcher := message.NewDispatcher(sessions, NewMessageSender(host), n.log, 256)
	responder := file.NewResponder(n.blobs, file.DefaultChunkSize, n.log)
	transfer := file.NewTransfer(n.blobs, NewFileDialer(host), n.onFileProgress, n.log)
	msgValidator := validator.NewMessageValidator(nil)

	host.RegisterHandler(transport.ProtocolHandshake, asStreamHandler(netCtx, n.handleHandshakeStream))
	host.RegisterHandler(transport.ProtocolMessage, asStreamHandler(netCtx, n.handleMessageStream))
	host.RegisterHandler(transport.ProtocolFile, asStreamHandler(netCtx, responder.HandleStream))

	ps, err := pubsub.New(netCtx, host.Libp2pHost(), n.log)
	if err != nil {
		cancel()
		host.Close()
		return fmt.Errorf("node: start pubsub: %w", err)
	}

	selfPeerID, err := n.vault.PeerID()
	if err != nil {
		cancel()
		host.Close()
		return fmt.Errorf("node: load peer id: %w", err)
	}
	profile, err := n.store.Profile().Get(context.Background())
	selfHandle := ""
	if err == nil && profile != nil {
		selfHandle = profile.Alias
	}

	invitePS := NewInvitePubSub(ps)
	inviteDialer := NewInviteDialer(host)
	trustStore := NewTrustStoreAdapter(n.store.Peers())
	inviteEngine := invite.NewEngine(selfPeerID, selfHandle, kp, host.Addrs(), invitePS, invitePS, inviteDialer, trustStore, n.log)
	inviteEngine.SetIdentityAnchor(NewIdentityAnchorAdapter(n.didAnchor))
	RegisterInviteHandler(netCtx, host, inviteEngine, n.log)

	var mdnsSvc *discovery.MDNS
	if n.cfg.Discovery != nil && n.cfg.Discovery.MDNSEnabled {
		mdnsSvc, err = discovery.NewMDNS(host.Libp2pHost(), 0, n.onDiscoveryEvent, n.log)
		if err != nil {
			n.log.Warn("node: start mdns failed", logger.Error(err))
		}
	}

	var rendezvous *discovery.RendezvousClient
	if n.cfg.Discovery != nil && n.cfg.Discovery.RendezvousEnabled && n.cfg.Discovery.RendezvousEndpoint != "" {
		rendezvous = discovery.NewRendezvousClient(n.cfg.Discovery.RendezvousEndpoint, nil, n.log)
		go rendezvous.RunPublishLoop(netCtx, kp, host.Addrs, discovery.MinPublishInterval)
	}

	n.netMu.Lock()
	n.started = true
	n.cancelNet = cancel
	n.identityKey = kp
	n.host = host
	n.ps = ps
	n.mdnsSvc = mdnsSvc
	n.rendezvous = rendezvous
	n.sessions = sessions
	n.msgDispatcher = msgDispatcher
	n.transfer = transfer
	n.responder = responder
	n.inviteEngine = inviteEngine
	n.validator = msgValidator
	n.netMu.Unlock()

	n.dispatcher.SetNetworkDependencies(inviteEngine, msgDispatcher, NewPresenceAdapter(n), NewConnectionAdapter(n))

	online := n.cfg.Discovery == nil || n.cfg.Discovery.OnlineByDefault
	n.setOnline(online)

	n.log.Info("node: networking started",
		logger.String("peer_id", selfPeerID.String()),
		logger.String("handle", selfHandle))
	return nil
}

// stopNetworking tears down everything startNetworking built, used on
// vault reset. It is a no-op if networking was never started.
func (n *Node) stopNetworking() {
	n.netMu.Lock()
	if !n.started {
		n.netMu.Unlock()
		return
	}
	cancel := n.cancelNet
	host := n.host
	ps := n.ps
	mdnsSvc := n.mdnsSvc
	sessions := n.sessions
	fastCancel := n.fastCancel
	n.started = false
	n.cancelNet = nil
	n.host = nil
	n.ps = nil
	n.mdnsSvc = nil
	n.rendezvous = nil
	n.sessions = nil
	n.msgDispatcher = nil
	n.transfer = nil
	n.responder = nil
	n.inviteEngine = nil
	n.validator = nil
	n.identityKey = nil
	n.fastDiscovery = false
	n.fastCancel = nil
	n.netMu.Unlock()

	if fastCancel != nil {
		fastCancel()
	}

	n.dispatcher.SetNetworkDependencies(nil, nil, nil, nil)

	_ = ps
	if mdnsSvc != nil {
		mdnsSvc.Close()
	}
	if sessions != nil {
		sessions.Close()
	}
	if host != nil {
		host.Close()
	}
	if cancel != nil {
		cancel()
	}
}

// reportUntrustedPeer emits the trust gate's protocol event for peerID,
// throttled to untrustedPeerLogInterval so a peer retrying its handshake
// can't flood the log or the bus.
func (n *Node) reportUntrustedPeer(peerID string) {
	n.untrustedMu.Lock()
	last, seen := n.untrustedSeen[peerID]
	now := time.Now()
	if seen && now.Sub(last) < untrustedPeerLogInterval {
		n.untrustedMu.Unlock()
		return
	}
	n.untrustedSeen[peerID] = now
	n.untrustedMu.Unlock()

	n.log.Warn("node: dropped handshake from untrusted peer", logger.String("peer_id", peerID))
	n.bus.Publish(eventbus.KindUntrustedPeerDropped, peerID)
}

func (n *Node) onFileProgress(ev file.ProgressEvent) {
	n.bus.Publish(eventbus.KindFileTransferProgress, ev)
}

func (n *Node) onDiscoveryEvent(ev discovery.PeerEvent) {
	switch ev.Kind {
	case discovery.EventDiscovered:
		n.bus.Publish(eventbus.KindLocalPeerDiscovered, ev)
	case discovery.EventExpired:
		n.bus.Publish(eventbus.KindLocalPeerExpired, ev)
	}
}

// dialAndHandshake dials peerID's handshake protocol and installs the
// resulting session, used both for explicit reconnection requests and
// (with a non-nil addrs hint) by invite redemption's own dial path.
func (n *Node) dialAndHandshake(ctx context.Context, peerID identity.PeerID, addrs []string) error {
	n.netMu.Lock()
	host, sessions, kp := n.host, n.sessions, n.identityKey
	n.netMu.Unlock()
	if host == nil {
		return fmt.Errorf("node: networking not started")
	}

	stream, err := host.Dial(ctx, peerID, transport.ProtocolHandshake, addrs)
	if err != nil {
		return fmt.Errorf("node: dial handshake: %w", err)
	}
	rw := transport.AsReadWriteCloser(stream)
	defer rw.Close()

	sess, confirmedPeerID, err := handshake.Initiate(ctx, rw, kp, peerID, sessions.DefaultConfig())
	if err != nil {
		return err
	}
	sessions.Open(confirmedPeerID.String(), sess)
	n.bus.Publish(eventbus.KindPeerConnected, confirmedPeerID.String())
	return nil
}

// setFastDiscovery raises how often this node republishes its rendezvous
// record while a caller is actively trying to connect (the "add person"
// modal), bypassing the steady-state republish floor for a bounded window.
// Enabling it twice restarts the 5-minute timeout; disabling it, or letting
// that timeout elapse, reverts to the normal publish loop already running
// from startNetworking.
func (n *Node) setFastDiscovery(enabled bool) error {
	n.netMu.Lock()
	if n.fastCancel != nil {
		n.fastCancel()
		n.fastCancel = nil
	}
	n.fastDiscovery = enabled
	rendezvous := n.rendezvous
	kp := n.identityKey
	host := n.host
	n.netMu.Unlock()

	if !enabled || rendezvous == nil || host == nil || kp == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), fastDiscoveryTimeout)
	n.netMu.Lock()
	n.fastCancel = cancel
	n.netMu.Unlock()
	go n.runFastDiscoveryLoop(ctx, rendezvous, kp, host)
	return nil
}

// runFastDiscoveryLoop republishes on fastDiscoveryInterval until ctx is
// canceled (explicit disable, next vault reset, or the 5-minute timeout).
func (n *Node) runFastDiscoveryLoop(ctx context.Context, rendezvous *discovery.RendezvousClient, kp scrypto.KeyPair, host *transport.Host) {
	if err := rendezvous.Publish(ctx, kp, host.Addrs()); err != nil {
		n.log.Warn("node: fast discovery publish failed", logger.Error(err))
	}

	ticker := time.NewTicker(fastDiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			n.netMu.Lock()
			n.fastDiscovery = false
			n.netMu.Unlock()
			return
		case <-ticker.C:
			if err := rendezvous.Publish(ctx, kp, host.Addrs()); err != nil {
				n.log.Warn("node: fast discovery publish failed", logger.Error(err))
			}
		}
	}
}

func (n *Node) setOnline(enabled bool) error {
	n.netMu.Lock()
	rendezvous := n.rendezvous
	kp := n.identityKey
	host := n.host
	n.netMu.Unlock()
	if rendezvous == nil || host == nil || kp == nil {
		return nil
	}
	if !enabled {
		return nil
	}
	return rendezvous.Publish(context.Background(), kp, host.Addrs())
}
