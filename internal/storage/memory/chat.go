package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/google/uuid"
)

type ChatMemoryStorage struct {
	mu       sync.RWMutex
	messages []storage.ChatMessage
}

func NewChatMemoryStorage() *ChatMemoryStorage {
	return &ChatMemoryStorage{
		messages: make([]storage.ChatMessage, 0),
	}
}

func (s *ChatMemoryStorage) InsertMessage(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string, toolCommands []byte) (storage.ChatMessage, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(ownerUserID, profileID, role, content, toolCommands), nil
}

func (s *ChatMemoryStorage) InsertMessageIfEmpty(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string) (bool, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	owner := strings.TrimSpace(ownerUserID)
	for _, msg := range s.messages {
		if msg.OwnerUserID == owner && msg.ProfileID == profileID {
			return false, nil
		}
	}
	s.insertLocked(ownerUserID, profileID, role, content, nil)
	return true, nil
}

// insertLocked вызывается под s.mu.
func (s *ChatMemoryStorage) insertLocked(ownerUserID string, profileID uuid.UUID, role, content string, toolCommands []byte) storage.ChatMessage {
	createdAt := time.Now().UTC()
	// Keep transcript order strict even when the clock does not advance.
	if n := len(s.messages); n > 0 && !createdAt.After(s.messages[n-1].CreatedAt) {
		createdAt = s.messages[n-1].CreatedAt.Add(time.Microsecond)
	}

	msg := storage.ChatMessage{
		ID:           uuid.New(),
		OwnerUserID:  strings.TrimSpace(ownerUserID),
		ProfileID:    profileID,
		Role:         strings.TrimSpace(role),
		Content:      content,
		ToolCommands: toolCommands,
		CreatedAt:    createdAt,
	}

	s.messages = append(s.messages, msg)
	return msg
}

func (s *ChatMemoryStorage) ListMessages(ctx context.Context, ownerUserID string, profileID uuid.UUID, limit int, before *time.Time) ([]storage.ChatMessage, *time.Time, error) {
	_ = ctx

	ownerUserID = strings.TrimSpace(ownerUserID)
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]storage.ChatMessage, 0, len(s.messages))
	for _, msg := range s.messages {
		if msg.OwnerUserID != ownerUserID || msg.ProfileID != profileID {
			continue
		}
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		filtered = append(filtered, msg)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	if len(filtered) <= limit {
		return filtered, nil, nil
	}

	messages := filtered[len(filtered)-limit:]
	cursor := messages[0].CreatedAt.UTC()
	return messages, &cursor, nil
}
