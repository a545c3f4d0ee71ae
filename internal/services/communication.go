package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/talenthub/apiserver/internal/mq"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
)

const (
	maxMessageLength     = 5000
	defaultMessagesLimit = 50
	maxMessagesLimit     = 200
	maxConversations     = 100
)

// ParticipantLookup resolves participant ids to users.
type ParticipantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
}

// CommunicationService stores conversations and messages in Redis.
//
// Layout:
//
//	conversation:{id}            hash   id, participants, created_at, updated_at, last_message_id
//	conversation:{id}:messages   zset   message ids scored by send time
//	message:{id}                 hash   message fields
//	user:{id}:conversations      zset   conversation ids scored by last activity
type CommunicationService struct {
	rdb      redis.Cmdable
	users    ParticipantLookup
	notifier *Notifier
	logger   *log.Logger
	now      func() time.Time
}

// NewCommunicationService returns a CommunicationService. users may be nil,
// in which case participant ids are not checked against accounts.
func NewCommunicationService(rdb redis.Cmdable, users ParticipantLookup, notifier *Notifier, logger *log.Logger) *CommunicationService {
	return &CommunicationService{rdb: rdb, users: users, notifier: notifier, logger: logger, now: time.Now}
}

func conversationKey(id uuid.UUID) string         { return "conversation:" + id.String() }
func conversationMessagesKey(id uuid.UUID) string { return "conversation:" + id.String() + ":messages" }
func messageKey(id uuid.UUID) string              { return "message:" + id.String() }
func userConversationsKey(id uuid.UUID) string    { return "user:" + id.String() + ":conversations" }

// CreateConversation starts a conversation between creator and
// participants. The creator is always included and duplicates are dropped.
func (s *CommunicationService) CreateConversation(ctx context.Context, creator uuid.UUID, participants []uuid.UUID) (types.Conversation, error) {
	if s.rdb == nil {
		return types.Conversation{}, fmt.Errorf("%w: messaging store unavailable", ErrDependency)
	}

	members := []uuid.UUID{creator}
	for _, p := range participants {
		if p == uuid.Nil {
			return types.Conversation{}, invalid("participant_ids must be valid ids")
		}
		if !slices.Contains(members, p) {
			members = append(members, p)
		}
	}
	if len(members) < 2 {
		return types.Conversation{}, invalid("at least one other participant is required")
	}

	if s.users != nil {
		for _, p := range members[1:] {
			if _, err := s.users.GetByID(ctx, p); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return types.Conversation{}, invalid(fmt.Sprintf("unknown participant %s", p))
				}
				return types.Conversation{}, fmt.Errorf("check participant: %w", err)
			}
		}
	}

	now := s.now().UTC()
	conv := types.Conversation{
		ID:           uuid.New(),
		Participants: members,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	encoded, err := json.Marshal(members)
	if err != nil {
		return types.Conversation{}, err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, conversationKey(conv.ID),
			"id", conv.ID.String(),
			"participants", string(encoded),
			"created_at", now.Format(time.RFC3339Nano),
			"updated_at", now.Format(time.RFC3339Nano),
		)
		for _, p := range members {
			pipe.ZAdd(ctx, userConversationsKey(p), redis.Z{Score: score(now), Member: conv.ID.String()})
		}
		return nil
	})
	if err != nil {
		return types.Conversation{}, fmt.Errorf("%w: create conversation: %w", ErrDependency, err)
	}
	return conv, nil
}

// SendMessage appends a text message. The sender must be a participant.
func (s *CommunicationService) SendMessage(ctx context.Context, sender, conversationID uuid.UUID, content string) (types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Message{}, invalid("content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return types.Message{}, invalid(fmt.Sprintf("content must be at most %d characters", maxMessageLength))
	}

	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return types.Message{}, err
	}
	if !slices.Contains(conv.Participants, sender) {
		return types.Message{}, ErrForbidden
	}

	now := s.now().UTC()
	msg := types.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       sender,
		Content:        content,
		MessageType:    types.MessageTypeText,
		Timestamp:      now,
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, messageKey(msg.ID),
			"id", msg.ID.String(),
			"conversation_id", conversationID.String(),
			"sender_id", sender.String(),
			"content", content,
			"message_type", msg.MessageType,
			"timestamp", now.Format(time.RFC3339Nano),
			"read", "0",
		)
		pipe.ZAdd(ctx, conversationMessagesKey(conversationID), redis.Z{Score: score(now), Member: msg.ID.String()})
		pipe.HSet(ctx, conversationKey(conversationID),
			"updated_at", now.Format(time.RFC3339Nano),
			"last_message_id", msg.ID.String(),
		)
		for _, p := range conv.Participants {
			pipe.ZAdd(ctx, userConversationsKey(p), redis.Z{Score: score(now), Member: conversationID.String()})
		}
		return nil
	})
	if err != nil {
		return types.Message{}, fmt.Errorf("%w: send message: %w", ErrDependency, err)
	}

	recipients := make([]uuid.UUID, 0, len(conv.Participants)-1)
	for _, p := range conv.Participants {
		if p != sender {
			recipients = append(recipients, p)
		}
	}
	s.notifier.Notify(mq.ChannelMessageSent, mq.MessageSentEvent{
		MessageID:      msg.ID,
		ConversationID: conversationID,
		SenderID:       sender,
		Recipients:     recipients,
		OccurredAt:     now,
	})
	return msg, nil
}

// ListMessages returns up to limit of the newest messages, oldest first.
func (s *CommunicationService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, limit int) ([]types.Message, error) {
	switch {
	case limit < 0:
		return nil, invalid("limit must not be negative")
	case limit == 0:
		limit = defaultMessagesLimit
	case limit > maxMessagesLimit:
		limit = maxMessagesLimit
	}

	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(conv.Participants, userID) {
		return nil, ErrForbidden
	}

	ids, err := s.rdb.ZRevRange(ctx, conversationMessagesKey(conversationID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", ErrDependency, err)
	}
	slices.Reverse(ids)
	return s.loadMessages(ctx, ids)
}

// ListConversations returns the user's conversations, most recently active
// first, each with its last message.
func (s *CommunicationService) ListConversations(ctx context.Context, userID uuid.UUID) ([]types.Conversation, error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("%w: messaging store unavailable", ErrDependency)
	}
	ids, err := s.rdb.ZRevRange(ctx, userConversationsKey(userID), 0, maxConversations-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", ErrDependency, err)
	}

	out := make([]types.Conversation, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		conv, err := s.loadConversation(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func (s *CommunicationService) loadConversation(ctx context.Context, id uuid.UUID) (types.Conversation, error) {
	if s.rdb == nil {
		return types.Conversation{}, fmt.Errorf("%w: messaging store unavailable", ErrDependency)
	}
	fields, err := s.rdb.HGetAll(ctx, conversationKey(id)).Result()
	if err != nil {
		return types.Conversation{}, fmt.Errorf("%w: load conversation: %w", ErrDependency, err)
	}
	if len(fields) == 0 {
		return types.Conversation{}, ErrNotFound
	}

	conv := types.Conversation{ID: id}
	if err := json.Unmarshal([]byte(fields["participants"]), &conv.Participants); err != nil {
		return types.Conversation{}, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	conv.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	conv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])

	if last := fields["last_message_id"]; last != "" {
		msgs, err := s.loadMessages(ctx, []string{last})
		if err != nil {
			return types.Conversation{}, err
		}
		if len(msgs) == 1 {
			conv.LastMessage = &msgs[0]
		}
	}
	return conv, nil
}

func (s *CommunicationService) loadMessages(ctx context.Context, ids []string) ([]types.Message, error) {
	if len(ids) == 0 {
		return []types.Message{}, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, raw := range ids {
			cmds[i] = pipe.HGetAll(ctx, "message:"+raw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load messages: %w", ErrDependency, err)
	}

	out := make([]types.Message, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		msg, err := decodeMessage(fields)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("[Communication] skipping malformed message: %v", err)
			}
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func decodeMessage(fields map[string]string) (types.Message, error) {
	var msg types.Message
	var err error
	if msg.ID, err = uuid.Parse(fields["id"]); err != nil {
		return msg, err
	}
	if msg.ConversationID, err = uuid.Parse(fields["conversation_id"]); err != nil {
		return msg, err
	}
	if msg.SenderID, err = uuid.Parse(fields["sender_id"]); err != nil {
		return msg, err
	}
	if msg.Timestamp, err = time.Parse(time.RFC3339Nano, fields["timestamp"]); err != nil {
		return msg, err
	}
	msg.Content = fields["content"]
	msg.MessageType = fields["message_type"]
	msg.Read, _ = strconv.ParseBool(fields["read"])
	return msg, nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}
