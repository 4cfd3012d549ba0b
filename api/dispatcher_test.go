package api

import (
	"context"
	"testing"

	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/core/session"
	"github.com/rchat-io/rchat-node/crypto/vault"
	"github.com/rchat-io/rchat-node/internal/eventbus"
	"github.com/rchat-io/rchat-node/store"
	"github.com/rchat-io/rchat-node/theme"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *memoryStore) {
	t.Helper()
	st := newMemoryStore()
	v := vault.NewMemoryBacked()
	sessions := session.NewManager(nil, session.Config{})
	t.Cleanup(func() { sessions.Close() })
	msgDispatcher := message.NewDispatcher(sessions, nil, nil, 0)

	d := NewDispatcher(Dependencies{
		Store:             st,
		Vault:             v,
		MessageDispatcher: msgDispatcher,
		Files:             newMemBlobStore(),
		Bus:               eventbus.New(),
	})
	return d, st
}

func TestCheckAuthStatusBeforeSetup(t *testing.T) {
	d, _ := newTestDispatcher(t)
	status := d.CheckAuthStatus()
	require.False(t, status.IsSetUp)
	require.False(t, status.IsUnlocked)
}

func TestInitVaultRejectsEmptyPassword(t *testing.T) {
	d, _ := newTestDispatcher(t)
	err := d.InitVault("")
	require.NotNil(t, err)
	require.Equal(t, KindInvalidArgument, err.Kind)
}

func TestInitVaultThenUnlock(t *testing.T) {
	d, _ := newTestDispatcher(t)
	require.Nil(t, d.InitVault("correct horse battery staple"))

	status := d.CheckAuthStatus()
	require.True(t, status.IsSetUp)
	require.True(t, status.IsUnlocked)
}

func TestUnlockVaultWithWrongPasswordIsClassified(t *testing.T) {
	d, _ := newTestDispatcher(t)
	require.Nil(t, d.InitVault("correct horse battery staple"))
	require.Nil(t, d.deps.Vault.Reset())

	require.Nil(t, d.InitVault("a different password"))
	err := d.UnlockVault("wrong password")
	require.NotNil(t, err)
	require.Equal(t, KindInvalidPassword, err.Kind)
}

func TestSendMessageWithoutSessionStaysPending(t *testing.T) {
	d, st := newTestDispatcher(t)
	ctx := context.Background()

	msgID, apiErr := d.SendMessage(ctx, "peer-1", "hello")
	require.Nil(t, apiErr)
	require.NotEmpty(t, msgID)

	history, err := st.Messages().History(ctx, "peer-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, store.StatusPending, history[0].Status)
}

func TestSendMessageToSelfIsImmediatelyRead(t *testing.T) {
	d, st := newTestDispatcher(t)
	ctx := context.Background()

	require.Nil(t, d.SendMessageToSelf(ctx, "note to self"))

	history, err := st.Messages().History(ctx, selfChatID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, store.StatusRead, history[0].Status)
}

func TestMarkMessagesReadIsIdempotent(t *testing.T) {
	d, st := newTestDispatcher(t)
	ctx := context.Background()

	require.NoError(t, st.Messages().Insert(ctx, &store.ChatMessage{
		MsgID: "m1", ChatID: "peer-1", Status: store.StatusDelivered,
	}))

	require.Nil(t, d.MarkMessagesRead(ctx, "peer-1"))
	require.Nil(t, d.MarkMessagesRead(ctx, "peer-1"))

	history, err := st.Messages().History(ctx, "peer-1")
	require.NoError(t, err)
	require.Equal(t, store.StatusRead, history[0].Status)
}

func TestEnvelopeLifecycle(t *testing.T) {
	d, st := newTestDispatcher(t)
	ctx := context.Background()
	require.NoError(t, st.Peers().AddTrustedPeer(ctx, "peer-1", "alice"))

	require.Nil(t, d.CreateEnvelope(ctx, "work", "Work", "briefcase"))
	envs, apiErr := d.GetEnvelopes(ctx)
	require.Nil(t, apiErr)
	require.Len(t, envs, 1)
	require.Equal(t, "Work", envs[0].Name)

	require.Nil(t, d.UpdateEnvelope(ctx, "work", "Work Chats", "briefcase"))
	envs, apiErr = d.GetEnvelopes(ctx)
	require.Nil(t, apiErr)
	require.Equal(t, "Work Chats", envs[0].Name)

	target := "work"
	require.Nil(t, d.MoveChatToEnvelope(ctx, "peer-1", &target))
	assignments, apiErr := d.GetChatAssignments(ctx)
	require.Nil(t, apiErr)
	require.Equal(t, "work", assignments["peer-1"])

	require.Nil(t, d.DeleteEnvelope(ctx, "work"))
	assignments, apiErr = d.GetChatAssignments(ctx)
	require.Nil(t, apiErr)
	require.Empty(t, assignments)
}

func TestUpdateEnvelopeUnknownIDIsNotFound(t *testing.T) {
	d, _ := newTestDispatcher(t)
	err := d.UpdateEnvelope(context.Background(), "missing", "x", "y")
	require.NotNil(t, err)
	require.Equal(t, KindNotFound, err.Kind)
}

func TestThemeDefaultsThenAppliesPreset(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	cfg, apiErr := d.GetTheme(ctx)
	require.Nil(t, apiErr)
	require.Equal(t, theme.Default(), cfg)

	require.Nil(t, d.ApplyPreset(ctx, "dark"))
	cfg, apiErr = d.GetTheme(ctx)
	require.Nil(t, apiErr)
	require.Equal(t, "dark", cfg.Preset)

	key, apiErr := d.GetSelectedPreset(ctx)
	require.Nil(t, apiErr)
	require.Equal(t, "dark", key)
}

func TestApplyUnknownPresetIsInvalidArgument(t *testing.T) {
	d, _ := newTestDispatcher(t)
	err := d.ApplyPreset(context.Background(), "nonexistent")
	require.NotNil(t, err)
	require.Equal(t, KindInvalidArgument, err.Kind)
}

func TestPeerPinningAndTrustList(t *testing.T) {
	d, st := newTestDispatcher(t)
	ctx := context.Background()

	require.NoError(t, st.Peers().AddTrustedPeer(ctx, "peer-1", "alice"))
	require.Nil(t, d.SetPeerPinned(ctx, "peer-1", true))

	pinned, apiErr := d.GetPinnedPeers(ctx)
	require.Nil(t, apiErr)
	require.Equal(t, []string{"peer-1"}, pinned)

	require.Nil(t, d.DeletePeer(ctx, "peer-1"))
	trusted, apiErr := d.GetTrustedPeers(ctx)
	require.Nil(t, apiErr)
	require.Empty(t, trusted)
}

func TestUpdateUserProfileMergesFields(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	alias := "alice"
	require.Nil(t, d.UpdateUserProfile(ctx, &alias, nil))

	avatar := "blob:abc"
	require.Nil(t, d.UpdateUserProfile(ctx, nil, &avatar))

	profile, apiErr := d.GetUserProfile(ctx)
	require.Nil(t, apiErr)
	require.Equal(t, "alice", *profile.Alias)
	require.Equal(t, "blob:abc", *profile.AvatarRef)
}
