// internal/store/store.go
//
// SQL persistence for forms and submissions.
//
// Context
// -------
// SQLStore implements form.Repository on top of sqlx.  Two tables:
//
//	forms             (id PK, name, schema_json, draft_json, last_draft_at,
//	                   active, created_at, updated_at)
//	form_submissions  (id PK, form_id, data, ip_address, user_agent,
//	                   created_at)
//
// The form aggregate is stored as JSON text columns so the same DDL works on
// MySQL, PostgreSQL, and SQLite.  Queries are written with “?” placeholders
// and passed through Rebind for the connected driver.
//
// Notes
// -----
//   - SaveForm is an upsert done as SELECT then UPDATE or INSERT inside one
//     transaction.  MySQL reports zero affected rows for an UPDATE that
//     changes nothing, so RowsAffected cannot drive the choice.
//   - CountSubmissions relies on the (form_id, ip_address, created_at) index.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/formforge/internal/form"
)

// Listing bounds for ListSubmissions.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// SQLStore is safe for concurrent use.
type SQLStore struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *SQLStore { return &SQLStore{db: db} }

// DB exposes the handle for migrations and health checks.
func (s *SQLStore) DB() *sqlx.DB { return s.db }

// -----------------------------------------------------------------------------
// Rows
// -----------------------------------------------------------------------------

type formRow struct {
	ID          string       `db:"id"`
	Name        string       `db:"name"`
	SchemaJSON  string       `db:"schema_json"`
	DraftJSON   string       `db:"draft_json"`
	LastDraftAt sql.NullTime `db:"last_draft_at"`
	Active      bool         `db:"active"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

type submissionRow struct {
	ID        string    `db:"id"`
	FormID    string    `db:"form_id"`
	Data      string    `db:"data"`
	IPAddress string    `db:"ip_address"`
	UserAgent string    `db:"user_agent"`
	CreatedAt time.Time `db:"created_at"`
}

func encodeForm(f *form.Form) (formRow, error) {
	name, err := json.Marshal(f.Name)
	if err != nil {
		return formRow{}, fmt.Errorf("encode name: %w", err)
	}
	schema, err := json.Marshal(f.Schema)
	if err != nil {
		return formRow{}, fmt.Errorf("encode schema: %w", err)
	}
	draft, err := json.Marshal(f.Draft)
	if err != nil {
		return formRow{}, fmt.Errorf("encode draft: %w", err)
	}
	row := formRow{
		ID:         f.ID,
		Name:       string(name),
		SchemaJSON: string(schema),
		DraftJSON:  string(draft),
		Active:     f.Active,
		CreatedAt:  f.CreatedAt.UTC(),
		UpdatedAt:  f.UpdatedAt.UTC(),
	}
	if f.LastDraftAt != nil {
		row.LastDraftAt = sql.NullTime{Time: f.LastDraftAt.UTC(), Valid: true}
	}
	return row, nil
}

func (r formRow) decode() (*form.Form, error) {
	f := &form.Form{
		ID:        r.ID,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.Name), &f.Name); err != nil {
		return nil, fmt.Errorf("decode form %s name: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.SchemaJSON), &f.Schema); err != nil {
		return nil, fmt.Errorf("decode form %s schema: %w", r.ID, err)
	}
	if r.DraftJSON != "" {
		if err := json.Unmarshal([]byte(r.DraftJSON), &f.Draft); err != nil {
			return nil, fmt.Errorf("decode form %s draft: %w", r.ID, err)
		}
	}
	if r.LastDraftAt.Valid {
		t := r.LastDraftAt.Time.UTC()
		f.LastDraftAt = &t
	}
	return f, nil
}

// -----------------------------------------------------------------------------
// Forms
// -----------------------------------------------------------------------------

const selectForm = `SELECT id, name, schema_json, draft_json, last_draft_at, active, created_at, updated_at
                      FROM forms
                     WHERE id = ?`

// LoadForm returns form.ErrFormNotFound when id is unknown.
func (s *SQLStore) LoadForm(ctx context.Context, id string) (*form.Form, error) {
	var row formRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(selectForm), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, form.ErrFormNotFound
		}
		return nil, fmt.Errorf("load form %s: %w", id, err)
	}
	return row.decode()
}

// SaveForm inserts or replaces the whole aggregate.
func (s *SQLStore) SaveForm(ctx context.Context, f *form.Form) error {
	row, err := encodeForm(f)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save form %s: %w", f.ID, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM forms WHERE id = ?`), row.ID)
	if err != nil {
		return fmt.Errorf("save form %s: %w", f.ID, err)
	}

	if exists > 0 {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE forms
                SET name = ?, schema_json = ?, draft_json = ?, last_draft_at = ?, active = ?, updated_at = ?
              WHERE id = ?`),
			row.Name, row.SchemaJSON, row.DraftJSON, row.LastDraftAt, row.Active, row.UpdatedAt, row.ID)
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO forms
                (id, name, schema_json, draft_json, last_draft_at, active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			row.ID, row.Name, row.SchemaJSON, row.DraftJSON, row.LastDraftAt, row.Active, row.CreatedAt, row.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("save form %s: %w", f.ID, err)
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------
// Submissions
// -----------------------------------------------------------------------------

// CountSubmissions counts rows for (formID, ip) created at or after since.
func (s *SQLStore) CountSubmissions(ctx context.Context, formID, ip string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*)
                 FROM form_submissions
                WHERE form_id = ? AND ip_address = ? AND created_at >= ?`
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(q), formID, ip, since.UTC()); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// CreateSubmission inserts s.  Data is stored as JSON.
func (s *SQLStore) CreateSubmission(ctx context.Context, sub *form.Submission) error {
	data, err := json.Marshal(sub.Data)
	if err != nil {
		return fmt.Errorf("encode submission data: %w", err)
	}
	const q = `INSERT INTO form_submissions (id, form_id, data, ip_address, user_agent, created_at)
               VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		sub.ID, sub.FormID, string(data), sub.IPAddress, sub.UserAgent, sub.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// ListSubmissions returns a page of submissions for formID, newest first.  A
// limit ≤ 0 uses DefaultListLimit; limits above MaxListLimit are clamped.
func (s *SQLStore) ListSubmissions(ctx context.Context, formID string, limit, offset int) ([]form.Submission, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT id, form_id, data, ip_address, user_agent, created_at
                 FROM form_submissions
                WHERE form_id = ?
             ORDER BY created_at DESC, id
                LIMIT ? OFFSET ?`
	var rows []submissionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), formID, limit, offset); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	out := make([]form.Submission, 0, len(rows))
	for _, r := range rows {
		sub := form.Submission{
			ID:        r.ID,
			FormID:    r.FormID,
			IPAddress: r.IPAddress,
			UserAgent: r.UserAgent,
			CreatedAt: r.CreatedAt.UTC(),
		}
		if err := json.Unmarshal([]byte(r.Data), &sub.Data); err != nil {
			return nil, fmt.Errorf("decode submission %s: %w", r.ID, err)
		}
		out = append(out, sub)
	}
	return out, nil
}
