package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/matcher"
	"github.com/ABNmmd/PFE-FSA/internal/sources"
	apperrors "github.com/ABNmmd/PFE-FSA/pkg/errors"
	"github.com/ABNmmd/PFE-FSA/pkg/postgres"
)

// PostgresStore keeps reports in the plagiarism_reports table with the
// structured fields in JSONB columns. Updates lock the row and apply the
// same mutations as the memory store.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "report-store"),
	}
}

const reportColumns = `id, user_id, document1, document2, similarity_score, status, results,
	matched_content, detection_method, report_type, check_options, sources_checked,
	source_results, progress, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*Report, error) {
	var (
		r                                  Report
		doc1, doc2, results, matched, opts []byte
		checked, sourceResults             []byte
		score                              sql.NullFloat64
	)
	err := row.Scan(&r.ID, &r.UserID, &doc1, &doc2, &score, &r.Status, &results,
		&matched, &r.DetectionMethod, &r.ReportType, &opts, &checked,
		&sourceResults, &r.Progress, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.SimilarityScore = score.Float64
	for _, f := range []struct {
		raw  []byte
		dest any
	}{
		{doc1, &r.Document1},
		{doc2, &r.Document2},
		{results, &r.Results},
		{matched, &r.MatchedContent},
		{opts, &r.CheckOptions},
		{checked, &r.SourcesChecked},
		{sourceResults, &r.SourceResults},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dest); err != nil {
			return nil, fmt.Errorf("decoding report %s: %w", r.ID, err)
		}
	}
	if r.MatchedContent == nil {
		r.MatchedContent = []matcher.Match{}
	}
	if r.SourcesChecked == nil {
		r.SourcesChecked = []string{}
	}
	if r.SourceResults == nil {
		r.SourceResults = map[string]sources.Result{}
	}
	return &r, nil
}

// nullJSON marshals v to a JSON string, mapping nil pointers to SQL NULL.
// Strings rather than []byte keep lib/pq from sending bytea.
func nullJSON(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	return toJSON(v)
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

type encodedReport struct {
	doc1, doc2, results, opts       any
	matched, checked, sourceResults string
}

func encode(r *Report) (encodedReport, error) {
	var (
		e   encodedReport
		err error
	)
	if e.doc1, err = nullJSON(r.Document1, r.Document1 == nil); err != nil {
		return e, err
	}
	if e.doc2, err = nullJSON(r.Document2, r.Document2 == nil); err != nil {
		return e, err
	}
	if e.results, err = nullJSON(r.Results, r.Results == nil); err != nil {
		return e, err
	}
	if e.opts, err = nullJSON(r.CheckOptions, r.CheckOptions == nil); err != nil {
		return e, err
	}
	if e.matched, err = toJSON(r.MatchedContent); err != nil {
		return e, err
	}
	if e.checked, err = toJSON(r.SourcesChecked); err != nil {
		return e, err
	}
	if e.sourceResults, err = toJSON(r.SourceResults); err != nil {
		return e, err
	}
	return e, nil
}

func (s *PostgresStore) Create(ctx context.Context, r *Report) error {
	e, err := encode(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO plagiarism_reports (`+reportColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		r.ID, r.UserID, e.doc1, e.doc2, r.SimilarityScore, r.Status, e.results,
		e.matched, r.DetectionMethod, r.ReportType, e.opts, e.checked,
		e.sourceResults, r.Progress, r.Error, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	s.logger.Info("report created", "report_id", r.ID, "type", r.ReportType, "user_id", r.UserID)
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Report, error) {
	r, err := scanReport(s.db.DB.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM plagiarism_reports WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying report %s: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Report, error) {
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	out := []*Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, page, perPage int) ([]*Report, error) {
	offset, limit := pageBounds(page, perPage)
	return s.list(ctx,
		`SELECT `+reportColumns+` FROM plagiarism_reports
		 WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		userID, limit, offset)
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plagiarism_reports WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting reports: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, userID, docID string) ([]*Report, error) {
	return s.list(ctx,
		`SELECT `+reportColumns+` FROM plagiarism_reports
		 WHERE user_id = $1 AND (document1->>'id' = $2 OR document2->>'id' = $2)
		 ORDER BY created_at DESC, id`,
		userID, docID)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.DB.ExecContext(ctx, `DELETE FROM plagiarism_reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrReportNotFound
	}
	return nil
}

// update loads the row FOR UPDATE, applies fn and writes the mutable columns
// back in one transaction.
func (s *PostgresStore) update(ctx context.Context, id string, fn func(*Report)) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		r, err := scanReport(tx.QueryRowContext(ctx,
			`SELECT `+reportColumns+` FROM plagiarism_reports WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.ErrReportNotFound
		}
		if err != nil {
			return fmt.Errorf("locking report %s: %w", id, err)
		}
		fn(r)
		r.UpdatedAt = time.Now().UTC()

		e, err := encode(r)
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE plagiarism_reports SET
				similarity_score = $2, status = $3, results = $4, matched_content = $5,
				sources_checked = $6, source_results = $7, progress = $8, error = $9,
				updated_at = $10
			 WHERE id = $1`,
			r.ID, r.SimilarityScore, r.Status, e.results, e.matched,
			e.checked, e.sourceResults, r.Progress, r.Error, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("updating report %s: %w", id, err)
		}
		return nil
	})
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	return s.update(ctx, id, func(r *Report) { r.setStatus(status) })
}

func (s *PostgresStore) UpdateResults(ctx context.Context, id string, res compare.Result) error {
	return s.update(ctx, id, func(r *Report) { r.setResults(res) })
}

func (s *PostgresStore) UpdateSourceResult(ctx context.Context, id, source string, res sources.Result, progress, score float64) error {
	return s.update(ctx, id, func(r *Report) { r.setSourceResult(source, res, progress, score) })
}

func (s *PostgresStore) Fail(ctx context.Context, id, reason string) error {
	err := s.update(ctx, id, func(r *Report) { r.fail(reason) })
	if err == nil {
		s.logger.Warn("report failed", "report_id", id, "reason", reason)
	}
	return err
}
