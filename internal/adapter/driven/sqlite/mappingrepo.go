package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MappingStore = (*MappingRepo)(nil)

// MappingRepo is the SQLite implementation of the MappingStore port. The
// domain state lives in pages_urls and the DNS record id in cloudflare_records.
type MappingRepo struct {
	db  *DB
	now func() time.Time
}

// NewMappingRepo creates a new MappingRepo backed by the given DB.
func NewMappingRepo(db *DB) *MappingRepo {
	return &MappingRepo{db: db, now: time.Now}
}

const selectMapping = `
SELECT p.repo_name, p.pages_url, p.custom_domain, p.updated_at, r.cname_record
FROM pages_urls p
LEFT JOIN cloudflare_records r ON r.repo_name = p.repo_name`

// Get returns the mapping for repo, or nil, nil if none exists.
func (r *MappingRepo) Get(ctx context.Context, repo string) (*model.DomainMapping, error) {
	const query = selectMapping + ` WHERE p.repo_name = ?`

	m, err := scanMapping(r.db.Reader.QueryRowContext(ctx, query, repo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping %q: %w", repo, err)
	}
	return m, nil
}

// Save validates the mapping and upserts it with its record id in one
// transaction.
func (r *MappingRepo) Save(ctx context.Context, mapping model.DomainMapping) error {
	if err := model.ValidateMapping(&mapping); err != nil {
		return err
	}
	updatedAt := formatTime(r.now())

	return r.db.inTx(ctx, fmt.Sprintf("save mapping %q", mapping.RepoName), func(tx *sql.Tx) error {
		const upsert = `
INSERT INTO pages_urls (repo_name, pages_url, custom_domain, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(repo_name) DO UPDATE SET
    pages_url = excluded.pages_url,
    custom_domain = excluded.custom_domain,
    updated_at = excluded.updated_at`
		if _, err := tx.ExecContext(ctx, upsert,
			mapping.RepoName, nullString(mapping.PagesURL), nullString(mapping.CustomDomain), updatedAt,
		); err != nil {
			return fmt.Errorf("upsert pages_urls: %w", err)
		}

		if mapping.RecordID == "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM cloudflare_records WHERE repo_name = ?`, mapping.RepoName); err != nil {
				return fmt.Errorf("clear record id: %w", err)
			}
			return nil
		}

		const upsertRecord = `
INSERT INTO cloudflare_records (repo_name, cname_record, updated_at) VALUES (?, ?, ?)
ON CONFLICT(repo_name) DO UPDATE SET
    cname_record = excluded.cname_record,
    updated_at = excluded.updated_at`
		if _, err := tx.ExecContext(ctx, upsertRecord, mapping.RepoName, mapping.RecordID, updatedAt); err != nil {
			return fmt.Errorf("upsert record id: %w", err)
		}
		return nil
	})
}

// Remove deletes the mapping and its record id, reporting whether a mapping
// existed.
func (r *MappingRepo) Remove(ctx context.Context, repo string) (bool, error) {
	repo, err := model.ValidateRepoName(repo)
	if err != nil {
		return false, err
	}

	var existed bool
	err = r.db.inTx(ctx, fmt.Sprintf("remove mapping %q", repo), func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM pages_urls WHERE repo_name = ?`, repo)
		if err != nil {
			return fmt.Errorf("delete pages_urls: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check rows affected: %w", err)
		}
		existed = rows > 0

		if _, err := tx.ExecContext(ctx, `DELETE FROM cloudflare_records WHERE repo_name = ?`, repo); err != nil {
			return fmt.Errorf("delete record id: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// List returns all mappings ordered by repository name.
func (r *MappingRepo) List(ctx context.Context) ([]model.DomainMapping, error) {
	const query = selectMapping + ` ORDER BY p.repo_name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	mappings := []model.DomainMapping{}
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		mappings = append(mappings, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return mappings, nil
}

func scanMapping(s scanner) (*model.DomainMapping, error) {
	var m model.DomainMapping
	var pagesURL, customDomain, recordID sql.NullString
	var updatedAt string

	if err := s.Scan(&m.RepoName, &pagesURL, &customDomain, &updatedAt, &recordID); err != nil {
		return nil, err
	}
	m.PagesURL = pagesURL.String
	m.CustomDomain = customDomain.String
	m.RecordID = recordID.String

	var err error
	m.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &m, nil
}
