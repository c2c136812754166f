// Package conversation owns the server-side message history that frames
// each completion request.
package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatconnect/internal/models"
)

// DefaultSystemPrompt seeds a fresh conversation when no prompt is configured.
const DefaultSystemPrompt = "You are a helpful AI assistant. You are having a conversation with a user, " +
	"and you should remember and reference previous messages in this conversation. " +
	"Maintain context throughout the conversation."

// Store keeps the ordered conversation history. The server holds exactly one
// conversation per process; append, snapshot and clear serialize on a single
// mutex so concurrent requests cannot interleave partial updates.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	systemPrompt string
}

// NewStore builds the store and seeds the system message if the history is
// empty. The seed survives Clear.
func NewStore(ctx context.Context, db *sql.DB, systemPrompt string) (*Store, error) {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	s := &Store{db: db, systemPrompt: systemPrompt}
	if err := s.seed(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) seed(ctx context.Context) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE role = ?`, models.RoleSystem,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("count system messages: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), models.RoleSystem, s.systemPrompt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("seed system message: %w", err)
	}
	return nil
}

// Append stores a new message at the end of the history and returns it.
func (s *Store) Append(ctx context.Context, role models.Role, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.ID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// Snapshot returns the full history in insertion order.
func (s *Store) Snapshot(ctx context.Context) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Clear removes all user and assistant messages. The seeded system message
// stays in place.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE role != ?`, models.RoleSystem,
	); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// Len reports the number of messages in the conversation, excluding the
// system message.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE role != ?`, models.RoleSystem,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
