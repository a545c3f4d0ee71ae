package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/talenthub/apiserver/internal/mq"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
)

func newTestCommunication(t *testing.T, users ParticipantLookup, notifier *Notifier) *CommunicationService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewCommunicationService(client, users, notifier, nil)
	clock := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc
}

func TestCreateConversation(t *testing.T) {
	svc := newTestCommunication(t, nil, nil)
	ctx := context.Background()
	creator, other := uuid.New(), uuid.New()

	conv, err := svc.CreateConversation(ctx, creator, []uuid.UUID{other, other, creator})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if len(conv.Participants) != 2 || conv.Participants[0] != creator || conv.Participants[1] != other {
		t.Errorf("Participants = %v, want creator then other, deduplicated", conv.Participants)
	}

	if _, err := svc.CreateConversation(ctx, creator, []uuid.UUID{creator}); err == nil {
		t.Error("conversation with only the creator should be rejected")
	}

	for _, user := range []uuid.UUID{creator, other} {
		list, err := svc.ListConversations(ctx, user)
		if err != nil {
			t.Fatalf("ListConversations() error = %v", err)
		}
		if len(list) != 1 || list[0].ID != conv.ID {
			t.Errorf("ListConversations(%s) = %v", user, list)
		}
	}
}

func TestCreateConversation_UnknownParticipant(t *testing.T) {
	known := uuid.New()
	users := &mockUserRepository{
		GetByIDFunc: func(_ context.Context, id uuid.UUID) (types.User, error) {
			if id == known {
				return types.User{ID: id}, nil
			}
			return types.User{}, store.ErrNotFound
		},
	}
	svc := newTestCommunication(t, users, nil)

	if _, err := svc.CreateConversation(context.Background(), uuid.New(), []uuid.UUID{known}); err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	_, err := svc.CreateConversation(context.Background(), uuid.New(), []uuid.UUID{uuid.New()})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}

func TestSendAndListMessages(t *testing.T) {
	pub := &recordingPublisher{}
	notifier := NewNotifier(pub, nil)
	svc := newTestCommunication(t, nil, notifier)
	ctx := context.Background()
	alice, bob, mallory := uuid.New(), uuid.New(), uuid.New()

	conv, err := svc.CreateConversation(ctx, alice, []uuid.UUID{bob})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	for _, text := range []string{"hello", "  are you there?  ", "third"} {
		if _, err := svc.SendMessage(ctx, alice, conv.ID, text); err != nil {
			t.Fatalf("SendMessage(%q) error = %v", text, err)
		}
	}
	notifier.Wait()
	if got := pub.published(); len(got) != 3 || got[0] != mq.ChannelMessageSent {
		t.Errorf("published %v, want three message events", got)
	}

	msgs, err := svc.ListMessages(ctx, bob, conv.ID, 2)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "are you there?" || msgs[1].Content != "third" {
		t.Errorf("messages = %+v, want newest two oldest first", msgs)
	}
	if msgs[0].SenderID != alice || msgs[0].MessageType != types.MessageTypeText {
		t.Errorf("message fields = %+v", msgs[0])
	}

	list, err := svc.ListConversations(ctx, bob)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(list) != 1 || list[0].LastMessage == nil || list[0].LastMessage.Content != "third" {
		t.Errorf("conversation summary = %+v", list)
	}

	if _, err := svc.SendMessage(ctx, mallory, conv.ID, "let me in"); !errors.Is(err, ErrForbidden) {
		t.Errorf("SendMessage(non-participant) error = %v, want ErrForbidden", err)
	}
	if _, err := svc.ListMessages(ctx, mallory, conv.ID, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("ListMessages(non-participant) error = %v, want ErrForbidden", err)
	}
	if _, err := svc.SendMessage(ctx, alice, uuid.New(), "anyone?"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SendMessage(unknown conversation) error = %v, want ErrNotFound", err)
	}
}

func TestSendMessage_ContentRules(t *testing.T) {
	svc := newTestCommunication(t, nil, nil)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	conv, err := svc.CreateConversation(ctx, alice, []uuid.UUID{bob})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	for name, content := range map[string]string{
		"blank":    "   ",
		"too long": strings.Repeat("é", 5001),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SendMessage(ctx, alice, conv.ID, content)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}

	if _, err := svc.SendMessage(ctx, alice, conv.ID, strings.Repeat("é", 5000)); err != nil {
		t.Errorf("5000 characters should be accepted: %v", err)
	}
}

func TestCommunication_NoRedis(t *testing.T) {
	svc := NewCommunicationService(nil, nil, nil, nil)
	if _, err := svc.CreateConversation(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}); !errors.Is(err, ErrDependency) {
		t.Errorf("error = %v, want ErrDependency", err)
	}
}
