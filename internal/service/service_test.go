package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Julfy0228/WebMessenger/internal/events"
	"github.com/Julfy0228/WebMessenger/internal/logger"
	"github.com/Julfy0228/WebMessenger/internal/repository"
)

// openTestDB gives each test its own shared-cache in-memory database so
// gorm's connection pool sees one store.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.Open(dsn)
	require.NoError(t, err)
	return db
}

// recordingBroadcaster captures emitted events for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	toChat []events.Event
	toAll  []events.Event
}

func (r *recordingBroadcaster) ToChat(_ uint, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toChat = append(r.toChat, ev)
}

func (r *recordingBroadcaster) ToAll(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toAll = append(r.toAll, ev)
}

func (r *recordingBroadcaster) chatTypes() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.toChat))
	for _, ev := range r.toChat {
		out = append(out, ev.Type)
	}
	return out
}

// memBlobStore returns a deterministic URL per stored blob.
type memBlobStore struct {
	stored [][]byte
}

func (m *memBlobStore) Store(_ context.Context, data []byte, suggestedName string) (string, error) {
	m.stored = append(m.stored, data)
	return fmt.Sprintf("https://blobs.test/%d-%s", len(m.stored), suggestedName), nil
}

type fixture struct {
	chats    *ChatService
	messages *MessageService
	repo     repository.ChatRepository
	msgRepo  repository.MessageRepository
	cast     *recordingBroadcaster
	blobs    *memBlobStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	chatRepo := repository.NewSQLChatRepository(db)
	msgRepo := repository.NewSQLMessageRepository(db)
	cast := &recordingBroadcaster{}
	blobs := &memBlobStore{}
	log := logger.Nop()
	return &fixture{
		chats:    NewChatService(chatRepo, msgRepo, cast, blobs, log),
		messages: NewMessageService(chatRepo, msgRepo, cast, blobs, log),
		repo:     chatRepo,
		msgRepo:  msgRepo,
		cast:     cast,
		blobs:    blobs,
	}
}
