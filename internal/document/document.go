// Package document stores uploaded documents and their raw bytes. The
// checker reads documents through the Store interface; PostgreSQL backs it in
// production and the in-memory store backs tests and the CLI.
package document

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded file owned by one user.
type Document struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	FileType  string    `json:"file_type"`
	Size      int64     `json:"size"`
	Content   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Ref is the document summary embedded in reports.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Ref summarises d.
func (d *Document) Ref() *Ref {
	return &Ref{ID: d.ID, Name: d.Name, Type: d.FileType}
}

// Store persists documents. Get returns apperrors.ErrDocumentNotFound for an
// unknown id.
type Store interface {
	Get(ctx context.Context, id string) (*Document, error)
	ListByOwner(ctx context.Context, userID string) ([]*Document, error)
	Create(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id string) error
}

// New builds a document with a fresh id, deriving the file type from the
// name's extension.
func New(userID, name string, content []byte) *Document {
	return &Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		FileType:  TypeFromName(name),
		Size:      int64(len(content)),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// TypeFromName returns the lowercased extension without the dot.
func TypeFromName(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
