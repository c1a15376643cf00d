package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MessageType enumerates high-level protocol intents.
type MessageType string

const (
	MessageTypeAuthRequest MessageType = "auth_request"
	MessageTypeCommand     MessageType = "command"
	MessageTypeResult      MessageType = "result"
	MessageTypeAck         MessageType = "ack"
)

// Metadata keys.
const (
	MetaAction      = "action"
	MetaReferenceID = "reference_id"
)

// Auth actions carried in AuthRequest.Action.
const (
	AuthActionRegister = "register"
	AuthActionLogin    = "login"
)

// Command actions carried in the "action" metadata of a command envelope.
const (
	ActionSendMessage             = "send_message"
	ActionGetConversationsGrouped = "get_conversations_grouped"
	ActionSearchConversations     = "search_conversations"
	ActionDeleteConversation      = "delete_conversation"
	ActionDeleteThread            = "delete_thread"
	ActionUpdateConversation      = "update_conversation"
	ActionGetUserStats            = "get_user_stats"
	ActionExportUserData          = "export_user_data"
	ActionGetUserInfo             = "get_user_info"
	ActionChangePassword          = "change_password"
	ActionCleanupOldData          = "cleanup_old_data"
	ActionHealthCheck             = "health_check"
	ActionGetAppConfig            = "get_app_config"
)

// Ack statuses.
const (
	AckStatusOK    = "ok"
	AckStatusError = "error"
)

// Envelope wraps every payload sent over the wire.
type Envelope struct {
	ID        string                 `json:"id"`
	Type      MessageType            `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Token     string                 `json:"token,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Payload   interface{}            `json:"payload,omitempty"`
}

// NewEnvelope returns an envelope with a fresh id and the current time.
func NewEnvelope(typ MessageType, payload interface{}) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// MetadataString returns the string stored under key, or "".
func (e Envelope) MetadataString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if s, ok := e.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// AckPayload reports a protocol level failure for the referenced envelope.
type AckPayload struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// AuthRequest carries login or registration data.
type AuthRequest struct {
	Action   string `json:"action"` // login or register
	Username string `json:"username"`
	Password string `json:"password"`
}

type SendMessageRequest struct {
	Message  string `json:"message"`
	Sport    string `json:"sport"`
	ThreadID *int64 `json:"thread_id,omitempty"`
}

// FilterRequest narrows listings to one sport; empty means all.
type FilterRequest struct {
	Sport string `json:"sport,omitempty"`
}

type SearchRequest struct {
	Term  string `json:"term"`
	Sport string `json:"sport,omitempty"`
}

// TurnRequest references a single turn.
type TurnRequest struct {
	ID int64 `json:"id"`
}

type ThreadRequest struct {
	ThreadID int64 `json:"thread_id"`
}

type UpdateConversationRequest struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type CleanupRequest struct {
	DaysOld int `json:"days_old,omitempty"`
}

// ErrMissingPayload is returned by DecodePayload for an absent payload.
var ErrMissingPayload = errors.New("missing payload")

// DecodePayload converts a generically decoded payload into T.
func DecodePayload[T any](payload interface{}) (T, error) {
	var out T
	if payload == nil {
		return out, ErrMissingPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return out, errors.Wrap(err, "encode payload")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.Wrap(err, "decode payload")
	}
	return out, nil
}
