// Package comment stores reader comments in SQLite.
package comment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/storyline/post"
)

// ErrNotFound is returned when a comment id does not exist for the post.
var ErrNotFound = errors.New("comment not found")

const (
	maxBodyLength = 10_000
	// Fixed width so created_at sorts correctly as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Status is the moderation state of a comment.
type Status string

const (
	StatusPublished Status = "published"
	StatusPending   Status = "pending"
	StatusFlagged   Status = "flagged"
)

// ParseStatus maps s onto a known status, reporting whether it was valid.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPublished, StatusPending, StatusFlagged:
		return st, true
	default:
		return "", false
	}
}

// Comment belongs to exactly one post.
type Comment struct {
	ID        string      `json:"id"`
	PostID    string      `json:"postId"`
	Author    post.Author `json:"author"`
	Body      string      `json:"body"`
	Status    Status      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Input creates a comment.
type Input struct {
	Author *post.AuthorInput `json:"author"`
	Body   string            `json:"body"`
	Status string            `json:"status"`
}

// Patch edits a comment. Nil fields are unchanged.
type Patch struct {
	Body   *string `json:"body"`
	Status *string `json:"status"`
}

// Store persists comments.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates the comments table on db if needed.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL,
    author TEXT NOT NULL,
    body TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'published',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at);
`)
	if err != nil {
		return fmt.Errorf("create comments table: %w", err)
	}
	return nil
}

func validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", &post.ValidationError{Field: "body", Message: "body is required"}
	}
	if len([]rune(body)) > maxBodyLength {
		return "", &post.ValidationError{Field: "body", Message: fmt.Sprintf("body exceeds %d characters", maxBodyLength)}
	}
	return body, nil
}

func validateStatus(s string) (Status, error) {
	st, ok := ParseStatus(s)
	if !ok {
		return "", &post.ValidationError{Field: "status", Message: "status must be published, pending or flagged"}
	}
	return st, nil
}

// Create stores a new comment on postID. The caller is responsible for
// checking that the post exists.
func (s *Store) Create(ctx context.Context, postID string, in Input) (*Comment, error) {
	body, err := validateBody(in.Body)
	if err != nil {
		return nil, err
	}
	status := StatusPublished
	if strings.TrimSpace(in.Status) != "" {
		if status, err = validateStatus(in.Status); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	c := &Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		Author:    post.NormalizeAuthor(in.Author),
		Body:      body,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	author, err := json.Marshal(c.Author)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, author, body, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, string(author), c.Body, string(c.Status), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the comments on postID, oldest first.
func (s *Store) List(ctx context.Context, postID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, author, body, status, created_at, updated_at FROM comments WHERE post_id = ? ORDER BY created_at ASC, id ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

// Get returns one comment on postID.
func (s *Store) Get(ctx context.Context, postID, id string) (*Comment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, post_id, author, body, status, created_at, updated_at FROM comments WHERE post_id = ? AND id = ?`, postID, id)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// Update applies patch to a comment on postID.
func (s *Store) Update(ctx context.Context, postID, id string, patch Patch) (*Comment, error) {
	c, err := s.Get(ctx, postID, id)
	if err != nil {
		return nil, err
	}
	if patch.Body != nil {
		if c.Body, err = validateBody(*patch.Body); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil {
		if c.Status, err = validateStatus(*patch.Status); err != nil {
			return nil, err
		}
	}
	c.UpdatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE comments SET body = ?, status = ?, updated_at = ? WHERE post_id = ? AND id = ?`,
		c.Body, string(c.Status), formatTime(c.UpdatedAt), postID, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return c, nil
}

// count returns how many comments postID has.
func (s *Store) count(ctx context.Context, postID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM comments WHERE post_id = ?`, postID).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner) (*Comment, error) {
	var c Comment
	var author, status, created, updated string
	if err := row.Scan(&c.ID, &c.PostID, &author, &c.Body, &status, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(author), &c.Author); err != nil {
		return nil, fmt.Errorf("decode comment author: %w", err)
	}
	c.Status = Status(status)
	c.CreatedAt, _ = time.Parse(timeLayout, created)
	c.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
