package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rchat-io/rchat-node/theme"
)

// dispatch decodes params for command and invokes the matching Dispatcher
// method, returning a JSON-marshalable result or a typed Error. This is the
// one place the stable command names from the command surface are spelled
// out literally; every Dispatcher method above is otherwise just ordinary
// Go, callable directly by anything that doesn't go through the bridge
// (tests, an embedding caller, a future non-WebSocket transport).
func (b *Bridge) dispatch(ctx context.Context, command string, params json.RawMessage) (any, *Error) {
	d := b.dispatcher

	decode := func(v any) *Error {
		if len(params) == 0 {
			return nil
		}
		if err := json.Unmarshal(params, v); err != nil {
			return newError(KindInvalidArgument, "decode params", err)
		}
		return nil
	}

	switch command {
	case "check_auth_status":
		return d.CheckAuthStatus(), nil

	case "init_vault":
		var p struct{ Password string `json:"password"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.InitVault(p.Password)

	case "unlock_vault":
		var p struct{ Password string `json:"password"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.UnlockVault(p.Password)

	case "reset_vault":
		return nil, d.ResetVault(ctx)

	case "start_github_auth":
		result, err := d.StartGitHubAuth(ctx)
		return result, err

	case "poll_github_auth":
		var p struct{ DeviceCode string `json:"device_code"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.PollGitHubAuth(ctx, p.DeviceCode)

	case "save_api_token":
		var p struct {
			Token string `json:"token"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.SaveAPIToken(p.Token)

	case "get_user_profile":
		return d.GetUserProfile(ctx)

	case "update_user_profile":
		var p struct {
			Alias     *string `json:"alias"`
			AvatarRef *string `json:"avatar_ref"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.UpdateUserProfile(ctx, p.Alias, p.AvatarRef)

	case "get_trusted_peers":
		return d.GetTrustedPeers(ctx)

	case "delete_peer":
		var p struct{ PeerID string `json:"peer_id"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.DeletePeer(ctx, p.PeerID)

	case "get_pinned_peers":
		return d.GetPinnedPeers(ctx)

	case "set_peer_pinned":
		var p struct {
			PeerID string `json:"peer_id"`
			Pinned bool   `json:"pinned"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.SetPeerPinned(ctx, p.PeerID, p.Pinned)

	case "get_envelopes":
		return d.GetEnvelopes(ctx)

	case "create_envelope":
		var p struct{ ID, Name, Icon string }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.CreateEnvelope(ctx, p.ID, p.Name, p.Icon)

	case "update_envelope":
		var p struct{ ID, Name, Icon string }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.UpdateEnvelope(ctx, p.ID, p.Name, p.Icon)

	case "delete_envelope":
		var p struct{ ID string `json:"id"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.DeleteEnvelope(ctx, p.ID)

	case "get_chat_assignments":
		return d.GetChatAssignments(ctx)

	case "move_chat_to_envelope":
		var p struct {
			ChatID     string  `json:"chat_id"`
			EnvelopeID *string `json:"envelope_id"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.MoveChatToEnvelope(ctx, p.ChatID, p.EnvelopeID)

	case "get_chat_latest_times":
		return d.GetChatLatestTimes(ctx)

	case "get_chat_history":
		var p struct{ ChatID string `json:"chat_id"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.GetChatHistory(ctx, p.ChatID)

	case "send_message":
		var p struct {
			PeerID  string `json:"peer_id"`
			Message string `json:"message"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.SendMessage(ctx, p.PeerID, p.Message)

	case "send_message_to_self":
		var p struct{ Message string `json:"message"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.SendMessageToSelf(ctx, p.Message)

	case "send_image_message":
		var p struct {
			PeerID string `json:"peer_id"`
			Path   string `json:"path"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.SendImageMessage(ctx, p.PeerID, p.Path)

	case "send_document_message":
		var p struct {
			PeerID string `json:"peer_id"`
			Path   string `json:"path"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.SendDocumentMessage(ctx, p.PeerID, p.Path)

	case "send_video_message":
		var p struct {
			PeerID string `json:"peer_id"`
			Path   string `json:"path"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.SendVideoMessage(ctx, p.PeerID, p.Path)

	case "mark_messages_read":
		var p struct{ ChatID string `json:"chat_id"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.MarkMessagesRead(ctx, p.ChatID)

	case "get_image_data":
		var p struct{ FileHash string `json:"file_hash"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.GetImageData(p.FileHash)

	case "get_image_from_path":
		var p struct{ Path string `json:"path"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.GetImageFromPath(p.Path)

	case "save_image_to_file":
		var p struct {
			FileHash   string `json:"file_hash"`
			TargetPath string `json:"target_path"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.SaveImageToFile(p.FileHash, p.TargetPath)

	case "save_document_to_file":
		var p struct {
			FileHash   string `json:"file_hash"`
			TargetPath string `json:"target_path"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.SaveDocumentToFile(p.FileHash, p.TargetPath)

	case "get_video_data":
		var p struct{ FileHash string `json:"file_hash"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.GetVideoData(p.FileHash)

	case "get_stickers":
		return d.GetStickers(ctx)

	case "add_sticker":
		var p struct {
			WebpBytes []byte `json:"webp_bytes"`
			Name      string `json:"name"`
		}
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.AddSticker(ctx, p.WebpBytes, p.Name)

	case "delete_sticker":
		var p struct{ FileHash string `json:"file_hash"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.DeleteSticker(ctx, p.FileHash)

	case "get_sticker_data":
		var p struct{ FileHash string `json:"file_hash"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.GetStickerData(p.FileHash)

	case "set_fast_discovery":
		var p struct{ Enabled bool `json:"enabled"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.SetFastDiscovery(p.Enabled)

	case "toggle_online_status":
		var p struct{ Enabled bool `json:"enabled"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.ToggleOnlineStatus(p.Enabled)

	case "request_connection":
		var p struct{ PeerID string `json:"peer_id"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.RequestConnection(ctx, p.PeerID)

	case "generate_invite_password":
		return d.GenerateInvitePassword()

	case "create_invite":
		var p struct{ Invitee, Password string }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return nil, d.CreateInvite(ctx, p.Invitee, p.Password)

	case "redeem_and_connect":
		var p struct{ Inviter, Password string }
		if err := decode(&p); err != nil {
			return nil, err
		}
		return d.RedeemAndConnect(ctx, p.Inviter, p.Password)

	case "get_theme":
		return d.GetTheme(ctx)

	case "update_theme":
		var cfg theme.Config
		if err := decode(&cfg); err != nil {
			return nil, err
		}
		return nil, d.UpdateTheme(ctx, cfg)

	case "list_theme_presets":
		return d.ListThemePresets(), nil

	case "apply_preset":
		var p struct{ Name string `json:"name"` }
		if err := decode(&p); err != nil {
			return nil, err
		}
		if err := d.ApplyPreset(ctx, p.Name); err != nil {
			return nil, err
		}
		return d.GetTheme(ctx)

	case "get_selected_preset":
		return d.GetSelectedPreset(ctx)

	default:
		return nil, newError(KindInvalidArgument, fmt.Sprintf("unknown command %q", command), nil)
	}
}
