package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var ErrNotFound = errors.New("not found")

func (s *Store) CreateChat(ctx context.Context, title string) (Chat, error) {
	if strings.TrimSpace(title) == "" {
		title = "Untitled chat"
	}
	q := s.sql.Insert("chats").
		Columns("title").
		Values(title).
		Suffix("RETURNING id, title, created_at, last_active_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Chat{}, fmt.Errorf("build create chat query: %w", err)
	}

	var c Chat
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.LastActiveAt); err != nil {
		return Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return c, nil
}

func (s *Store) GetChat(ctx context.Context, chatID int64) (Chat, error) {
	q := s.sql.Select("id", "title", "created_at", "last_active_at").
		From("chats").
		Where(sq.Eq{"id": chatID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Chat{}, fmt.Errorf("build get chat query: %w", err)
	}

	var c Chat
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.LastActiveAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, ErrNotFound
		}
		return Chat{}, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

func (s *Store) ListChats(ctx context.Context) ([]Chat, error) {
	q := s.sql.Select("id", "title", "created_at", "last_active_at").
		From("chats").
		OrderBy("last_active_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list chats query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	out := make([]Chat, 0)
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.LastActiveAt); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rows: %w", err)
	}
	return out, nil
}

func (s *Store) RenameChat(ctx context.Context, chatID int64, title string) error {
	q := s.sql.Update("chats").
		Set("title", title).
		Where(sq.Eq{"id": chatID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build rename chat query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("rename chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename chat rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteChat(ctx context.Context, chatID int64) error {
	q := s.sql.Delete("chats").Where(sq.Eq{"id": chatID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete chat query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, chatID int64) ([]Message, error) {
	q := s.sql.Select("id", "chat_id", "role", "content", "model_name", "created_at").
		From("messages").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("id ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list messages query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		var model sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &model, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if model.Valid {
			m.ModelName = &model.String
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

// AppendMessage inserts a message and bumps the chat's last_active_at.
// The chat row must already exist; a missing chat surfaces as ErrNotFound.
func (s *Store) AppendMessage(ctx context.Context, chatID int64, role, content string, modelName *string) (Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return Message{}, err
	}

	q := s.sql.Insert("messages").
		Columns("chat_id", "role", "content", "model_name").
		Values(chatID, role, content, modelName).
		Suffix("RETURNING id, chat_id, role, content, model_name, created_at")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Message{}, fmt.Errorf("build append message query: %w", err)
	}

	var m Message
	var model sql.NullString
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &model, &m.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	if model.Valid {
		m.ModelName = &model.String
	}

	if err := s.TouchChat(ctx, chatID); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (s *Store) TouchChat(ctx context.Context, chatID int64) error {
	q := s.sql.Update("chats").
		Set("last_active_at", nowExpr(s.driver)).
		Where(sq.Eq{"id": chatID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build touch chat query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return nil
}

func (s *Store) SaveEmbedding(ctx context.Context, e Embedding) (int64, error) {
	vec, err := json.Marshal(e.Vector)
	if err != nil {
		return 0, fmt.Errorf("marshal embedding vector: %w", err)
	}

	q := s.sql.Insert("embeddings").
		Columns("chat_id", "message_id", "model", "vector_json").
		Values(e.ChatID, e.MessageID, e.Model, string(vec)).
		Suffix("RETURNING id")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build save embedding query: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("save embedding: %w", err)
	}
	return id, nil
}

func (s *Store) ListEmbeddings(ctx context.Context, chatID int64) ([]Embedding, error) {
	q := s.sql.Select("id", "chat_id", "message_id", "model", "vector_json", "created_at").
		From("embeddings").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("message_id ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list embeddings query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	out := make([]Embedding, 0)
	for rows.Next() {
		var e Embedding
		var raw string
		if err := rows.Scan(&e.ID, &e.ChatID, &e.MessageID, &e.Model, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Vector); err != nil {
			return nil, fmt.Errorf("unmarshal embedding vector: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedding rows: %w", err)
	}
	return out, nil
}

func nowExpr(driver string) any {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
