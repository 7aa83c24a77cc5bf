package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/ABNmmd/PFE-FSA/pkg/errors"
	"github.com/ABNmmd/PFE-FSA/pkg/postgres"
)

// PostgresStore keeps documents in the documents table.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "document-store"),
	}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Document, error) {
	var d Document
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, user_id, name, file_type, size, content, created_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.UserID, &d.Name, &d.FileType, &d.Size, &d.Content, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}
	return &d, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, userID string) ([]*Document, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, user_id, name, file_type, size, content, created_at
		 FROM documents WHERE user_id = $1 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.FileType, &d.Size, &d.Content, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, doc *Document) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, name, file_type, size, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.UserID, doc.Name, doc.FileType, doc.Size, doc.Content, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	s.logger.Info("document stored", "document_id", doc.ID, "user_id", doc.UserID, "size", doc.Size)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrDocumentNotFound
	}
	return nil
}
