package storage

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Chat struct {
	ID           int64
	Title        string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

type Message struct {
	ID        int64
	ChatID    int64
	Role      string
	Content   string
	ModelName *string
	CreatedAt time.Time
}

type Embedding struct {
	ID        int64
	ChatID    int64
	MessageID int64
	Model     string
	Vector    []float32
	CreatedAt time.Time
}
