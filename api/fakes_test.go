package api

import (
	"context"
	"io"
	"sync"

	"github.com/rchat-io/rchat-node/store"
)

// memoryStore is a minimal in-memory store.Store for exercising Dispatcher
// without a SQLite file, mirroring the shape of store's sqlite* types but
// backed by plain maps.
type memoryStore struct {
	mu sync.Mutex

	peers     map[string]*store.TrustedPeer
	envelopes map[string]*store.Envelope
	messages  map[string][]*store.ChatMessage
	files     map[string]*store.FileObject
	profile   *store.UserProfile
	theme     string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		peers:     make(map[string]*store.TrustedPeer),
		envelopes: make(map[string]*store.Envelope),
		messages:  make(map[string][]*store.ChatMessage),
		files:     make(map[string]*store.FileObject),
		profile:   &store.UserProfile{},
	}
}

func (s *memoryStore) Peers() store.Peers         { return (*memPeers)(s) }
func (s *memoryStore) Envelopes() store.Envelopes { return (*memEnvelopes)(s) }
func (s *memoryStore) Messages() store.Messages   { return (*memMessages)(s) }
func (s *memoryStore) Files() store.Files         { return (*memFiles)(s) }
func (s *memoryStore) Stickers() store.Stickers   { return (*memFiles)(s) }
func (s *memoryStore) Profile() store.Profile     { return (*memProfile)(s) }
func (s *memoryStore) Theme() store.Theme         { return (*memTheme)(s) }

func (s *memoryStore) WipeAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = make(map[string]*store.TrustedPeer)
	s.messages = make(map[string][]*store.ChatMessage)
	s.files = make(map[string]*store.FileObject)
	return nil
}
func (s *memoryStore) Close() error                   { return nil }
func (s *memoryStore) Ping(ctx context.Context) error { return nil }

type memPeers memoryStore

func (p *memPeers) AddTrustedPeer(ctx context.Context, peerID, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers[peerID] = &store.TrustedPeer{PeerID: peerID, Handle: handle}
	return nil
}
func (p *memPeers) Get(ctx context.Context, peerID string) (*store.TrustedPeer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tp, ok := p.peers[peerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tp, nil
}
func (p *memPeers) List(ctx context.Context) ([]*store.TrustedPeer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*store.TrustedPeer, 0, len(p.peers))
	for _, tp := range p.peers {
		out = append(out, tp)
	}
	return out, nil
}
func (p *memPeers) SetPinned(ctx context.Context, peerID string, pinned bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tp, ok := p.peers[peerID]; ok {
		tp.Pinned = pinned
	}
	return nil
}
func (p *memPeers) SetEnvelope(ctx context.Context, peerID, envelopeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tp, ok := p.peers[peerID]; ok {
		tp.EnvelopeID = envelopeID
	}
	return nil
}
func (p *memPeers) Reorder(ctx context.Context, peerID string, orderIndex int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tp, ok := p.peers[peerID]; ok {
		tp.OrderIndex = orderIndex
	}
	return nil
}
func (p *memPeers) Delete(ctx context.Context, peerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.peers, peerID)
	return nil
}

type memEnvelopes memoryStore

func (e *memEnvelopes) Create(ctx context.Context, env *store.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.envelopes[env.ID] = env
	return nil
}
func (e *memEnvelopes) Get(ctx context.Context, id string) (*store.Envelope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, ok := e.envelopes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return env, nil
}
func (e *memEnvelopes) List(ctx context.Context) ([]*store.Envelope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*store.Envelope, 0, len(e.envelopes))
	for _, env := range e.envelopes {
		out = append(out, env)
	}
	return out, nil
}
func (e *memEnvelopes) Update(ctx context.Context, env *store.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, ok := e.envelopes[env.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Name = env.Name
	existing.Icon = env.Icon
	return nil
}
func (e *memEnvelopes) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.envelopes, id)
	for _, p := range e.peers {
		if p.EnvelopeID == id {
			p.EnvelopeID = ""
		}
	}
	return nil
}

type memMessages memoryStore

func (m *memMessages) Insert(ctx context.Context, msg *store.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.messages[msg.ChatID] {
		if existing.MsgID == msg.MsgID {
			return nil
		}
	}
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	return nil
}
func (m *memMessages) UpdateStatus(ctx context.Context, msgID string, status store.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.MsgID == msgID {
				msg.Status = status
			}
		}
	}
	return nil
}
func (m *memMessages) History(ctx context.Context, chatID string) ([]*store.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.ChatMessage(nil), m.messages[chatID]...), nil
}
func (m *memMessages) LatestTimes(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for chatID, msgs := range m.messages {
		if len(msgs) == 0 {
			continue
		}
		out[chatID] = msgs[len(msgs)-1].CreatedAt.Unix()
	}
	return out, nil
}

type memFiles memoryStore

func (f *memFiles) Upsert(ctx context.Context, obj *store.FileObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[obj.Hash] = obj
	return nil
}
func (f *memFiles) Get(ctx context.Context, hash string) (*store.FileObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.files[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return obj, nil
}
func (f *memFiles) Delete(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, hash)
	return nil
}
func (f *memFiles) List(ctx context.Context) ([]*store.FileObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.FileObject
	for _, obj := range f.files {
		if obj.Sticker {
			out = append(out, obj)
		}
	}
	return out, nil
}

type memProfile memoryStore

func (p *memProfile) Get(ctx context.Context) (*store.UserProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *p.profile
	return &cp, nil
}
func (p *memProfile) Set(ctx context.Context, profile *store.UserProfile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *profile
	p.profile = &cp
	return nil
}

type memTheme memoryStore

func (t *memTheme) Get(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.theme == "" {
		return "{}", nil
	}
	return t.theme, nil
}
func (t *memTheme) Set(ctx context.Context, json string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.theme = json
	return nil
}

// memBlobStore is an in-memory file.BlobStore for tests that need a real
// Ingest/Open round trip without touching disk.
type memBlobStore struct {
	mu   sync.Mutex
	blob map[string][]byte
	tmp  map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blob: make(map[string][]byte), tmp: make(map[string][]byte)}
}

func (b *memBlobStore) Has(fileHash string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blob[fileHash]
	return ok
}
func (b *memBlobStore) Open(fileHash string) (io.ReadSeekCloser, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blob[fileHash]
	if !ok {
		return nil, 0, store.ErrNotFound
	}
	return &memReadSeekCloser{data: data}, int64(len(data)), nil
}
func (b *memBlobStore) PartialSize(fileHash string) int64 { return 0 }
func (b *memBlobStore) OpenPartial(fileHash string) (io.ReadCloser, error) {
	return nil, store.ErrNotFound
}
func (b *memBlobStore) Writer(fileHash string, resume bool) (io.WriteCloser, error) {
	return &memWriter{store: b, key: fileHash}, nil
}
func (b *memBlobStore) Commit(fileHash string) error { return nil }
func (b *memBlobStore) CommitAs(tmpName, fileHash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blob[fileHash] = b.tmp[tmpName]
	delete(b.tmp, tmpName)
	return nil
}
func (b *memBlobStore) Quarantine(fileHash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tmp, fileHash)
	return nil
}
func (b *memBlobStore) Delete(fileHash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blob, fileHash)
	return nil
}

type memWriter struct {
	store *memBlobStore
	key   string
	buf   []byte
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
func (w *memWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.tmp[w.key] = w.buf
	return nil
}

type memReadSeekCloser struct {
	data []byte
	pos  int64
}

func (r *memReadSeekCloser) Read(p []byte) (int, error) {
	if r.pos >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += int64(n)
	return n, nil
}
func (r *memReadSeekCloser) Seek(offset int64, whence int) (int64, error) {
	r.pos = offset
	return r.pos, nil
}
func (r *memReadSeekCloser) Close() error { return nil }
