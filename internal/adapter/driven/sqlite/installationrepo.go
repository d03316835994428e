package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.InstallationStore = (*InstallationRepo)(nil)

// InstallationRepo is the SQLite implementation of the InstallationStore port.
// Cloudflare API tokens are encrypted with the Cipher before write and
// decrypted after read.
type InstallationRepo struct {
	db     *DB
	cipher *Cipher // nil when no encryption key is configured.
	now    func() time.Time
}

// NewInstallationRepo creates a new InstallationRepo. A nil cipher disables
// every operation that touches the API token.
func NewInstallationRepo(db *DB, c *Cipher) *InstallationRepo {
	return &InstallationRepo{db: db, cipher: c, now: time.Now}
}

// Put creates or replaces the config for cfg.InstallationID. created_at is
// preserved on replace.
func (r *InstallationRepo) Put(ctx context.Context, cfg model.InstallationConfig) error {
	encrypted, err := r.encrypt(cfg.APIToken)
	if err != nil {
		return fmt.Errorf("store installation %d: %w", cfg.InstallationID, err)
	}
	now := formatTime(r.now())

	return r.db.inTx(ctx, fmt.Sprintf("store installation %d", cfg.InstallationID), func(tx *sql.Tx) error {
		const query = `
INSERT INTO installations (installation_id, cloudflare_zone_id, cloudflare_api_token, cloudflare_email, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(installation_id) DO UPDATE SET
    cloudflare_zone_id = excluded.cloudflare_zone_id,
    cloudflare_api_token = excluded.cloudflare_api_token,
    cloudflare_email = excluded.cloudflare_email,
    updated_at = excluded.updated_at`
		_, err := tx.ExecContext(ctx, query,
			cfg.InstallationID, nullString(cfg.ZoneID), encrypted, nullString(cfg.Email), now, now,
		)
		return err
	})
}

// Get returns the config for installationID with a decrypted API token, or
// nil, nil if none exists.
func (r *InstallationRepo) Get(ctx context.Context, installationID int64) (*model.InstallationConfig, error) {
	const query = `
SELECT installation_id, cloudflare_zone_id, cloudflare_api_token, cloudflare_email, created_at, updated_at
FROM installations WHERE installation_id = ?`

	var cfg model.InstallationConfig
	var zoneID, apiToken, email sql.NullString
	var createdAt, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, installationID).Scan(
		&cfg.InstallationID, &zoneID, &apiToken, &email, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get installation %d: %w", installationID, err)
	}

	cfg.ZoneID = zoneID.String
	cfg.Email = email.String
	if apiToken.Valid && apiToken.String != "" {
		if r.cipher == nil {
			return nil, fmt.Errorf("get installation %d: %w", installationID, driven.ErrEncryptionKeyNotSet)
		}
		plaintext, err := r.cipher.Decrypt(apiToken.String)
		if err != nil {
			return nil, fmt.Errorf("decrypt installation %d: %w: %w", installationID, driven.ErrCredential, err)
		}
		cfg.APIToken = plaintext
	}

	if cfg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for installation %d: %w", installationID, err)
	}
	if cfg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for installation %d: %w", installationID, err)
	}
	return &cfg, nil
}

// Update applies patch to the stored config.
func (r *InstallationRepo) Update(ctx context.Context, installationID int64, patch model.InstallationPatch) error {
	if patch.IsEmpty() {
		return driven.ErrNoFieldsToUpdate
	}

	var fields []string
	var args []any
	if patch.ZoneID != nil {
		fields = append(fields, "cloudflare_zone_id = ?")
		args = append(args, nullString(*patch.ZoneID))
	}
	if patch.APIToken != nil {
		encrypted, err := r.encrypt(*patch.APIToken)
		if err != nil {
			return fmt.Errorf("update installation %d: %w", installationID, err)
		}
		fields = append(fields, "cloudflare_api_token = ?")
		args = append(args, encrypted)
	}
	if patch.Email != nil {
		fields = append(fields, "cloudflare_email = ?")
		args = append(args, nullString(*patch.Email))
	}
	fields = append(fields, "updated_at = ?")
	args = append(args, formatTime(r.now()), installationID)

	query := `UPDATE installations SET ` + strings.Join(fields, ", ") + ` WHERE installation_id = ?`

	var matched int64
	err := r.db.inTx(ctx, fmt.Sprintf("update installation %d", installationID), func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		matched, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return fmt.Errorf("update installation %d: %w", installationID, driven.ErrInstallationNotFound)
	}
	return nil
}

func (r *InstallationRepo) encrypt(plaintext string) (sql.NullString, error) {
	if plaintext == "" {
		return sql.NullString{}, nil
	}
	if r.cipher == nil {
		return sql.NullString{}, driven.ErrEncryptionKeyNotSet
	}
	encrypted, err := r.cipher.Encrypt(plaintext)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("%w: %w", driven.ErrCredential, err)
	}
	return sql.NullString{String: encrypted, Valid: true}, nil
}
