// internal/store/migrate.go
//
// Idempotent DDL for the forms tables.  Column types differ per driver only
// where the dialects disagree (timestamps, booleans, text keys).
package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type dialect struct {
	key, text, ts, boolean string
}

var dialects = map[string]dialect{
	"mysql":    {key: "VARCHAR(64)", text: "LONGTEXT", ts: "DATETIME(6)", boolean: "BOOLEAN"},
	"postgres": {key: "VARCHAR(64)", text: "TEXT", ts: "TIMESTAMPTZ", boolean: "BOOLEAN"},
	"pgx":      {key: "VARCHAR(64)", text: "TEXT", ts: "TIMESTAMPTZ", boolean: "BOOLEAN"},
	"sqlite":   {key: "TEXT", text: "TEXT", ts: "TIMESTAMP", boolean: "BOOLEAN"},
}

// Schema returns the CREATE statements for driver.
func Schema(driver string) ([]string, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("store: no schema for driver %q", driver)
	}
	r := strings.NewReplacer("{key}", d.key, "{text}", d.text, "{ts}", d.ts, "{bool}", d.boolean)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS forms (
            id            {key} NOT NULL PRIMARY KEY,
            name          {text} NOT NULL,
            schema_json   {text} NOT NULL,
            draft_json    {text} NOT NULL,
            last_draft_at {ts} NULL,
            active        {bool} NOT NULL DEFAULT TRUE,
            created_at    {ts} NOT NULL,
            updated_at    {ts} NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS form_submissions (
            id         {key} NOT NULL PRIMARY KEY,
            form_id    {key} NOT NULL,
            data       {text} NOT NULL,
            ip_address VARCHAR(64) NOT NULL,
            user_agent {text} NOT NULL,
            created_at {ts} NOT NULL
        )`,
	}
	// MySQL has no CREATE INDEX IF NOT EXISTS.
	if driver == "mysql" {
		stmts[1] = strings.TrimSuffix(stmts[1], ")") + `,
            INDEX idx_form_submissions_rate (form_id, ip_address, created_at)
        )`
	} else {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_form_submissions_rate ON form_submissions (form_id, ip_address, created_at)`)
	}

	for i := range stmts {
		stmts[i] = r.Replace(stmts[i])
	}
	return stmts, nil
}

// Migrate applies Schema for the store's driver.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts, err := Schema(s.db.DriverName())
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	zap.L().Info("store schema ready", zap.String("driver", s.db.DriverName()), zap.Int("statements", len(stmts)))
	return nil
}
