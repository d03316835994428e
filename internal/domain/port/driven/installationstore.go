package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
)

// Sentinel errors returned by InstallationStore implementations.
var (
	// ErrEncryptionKeyNotSet is returned when PAGESDNS_ENCRYPTION_KEY has not
	// been configured and a credential must be encrypted or decrypted.
	ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set PAGESDNS_ENCRYPTION_KEY")

	// ErrCredential marks a failure to encrypt or decrypt a stored credential.
	ErrCredential = errors.New("credential error")

	// ErrInstallationNotFound indicates no config exists for the installation.
	ErrInstallationNotFound = errors.New("installation not found")

	// ErrNoFieldsToUpdate is returned for an empty InstallationPatch.
	ErrNoFieldsToUpdate = errors.New("no fields to update")
)

// InstallationStore defines the driven port for per-installation DNS
// provider credentials. The adapter encrypts APIToken at rest; this interface
// carries plaintext.
type InstallationStore interface {
	// Put creates or replaces the config for cfg.InstallationID.
	Put(ctx context.Context, cfg model.InstallationConfig) error

	// Get returns the config with a decrypted APIToken, or nil, nil if the
	// installation has no config.
	Get(ctx context.Context, installationID int64) (*model.InstallationConfig, error)

	// Update applies a partial patch. Returns ErrNoFieldsToUpdate for an
	// empty patch and ErrInstallationNotFound if no row matched.
	Update(ctx context.Context, installationID int64, patch model.InstallationPatch) error
}
