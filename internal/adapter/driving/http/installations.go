package httphandler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// PutInstallation stores DNS provider credentials for an installation.
func (h *Handler) PutInstallation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.installationRequest(w, r)
	if !ok {
		return
	}

	var req PutInstallationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	cfg := model.InstallationConfig{
		InstallationID: id,
		ZoneID:         req.ZoneID,
		APIToken:       req.APIToken,
		Email:          req.Email,
	}
	if err := h.Installations.Put(r.Context(), cfg); err != nil {
		h.writeInstallationError(w, id, err)
		return
	}
	h.forgetProvider(id)

	h.logger.Info("installation config stored", "installation_id", id, "zone_id", req.ZoneID)
	h.respondInstallation(w, r, id)
}

// PatchInstallation updates some of an installation's credentials.
func (h *Handler) PatchInstallation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.installationRequest(w, r)
	if !ok {
		return
	}

	var req PatchInstallationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	patch := model.InstallationPatch{ZoneID: req.ZoneID, APIToken: req.APIToken, Email: req.Email}
	if err := h.Installations.Update(r.Context(), id, patch); err != nil {
		h.writeInstallationError(w, id, err)
		return
	}
	h.forgetProvider(id)

	h.logger.Info("installation config updated", "installation_id", id)
	h.respondInstallation(w, r, id)
}

// GetInstallation returns an installation's config with the token masked.
func (h *Handler) GetInstallation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.installationRequest(w, r)
	if !ok {
		return
	}
	h.respondInstallation(w, r, id)
}

func (h *Handler) respondInstallation(w http.ResponseWriter, r *http.Request, id int64) {
	cfg, err := h.Installations.Get(r.Context(), id)
	if err != nil {
		h.writeInstallationError(w, id, err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "installation not found")
		return
	}

	writeJSON(w, http.StatusOK, InstallationResponse{
		InstallationID: cfg.InstallationID,
		ZoneID:         cfg.ZoneID,
		APITokenSet:    cfg.APIToken != "",
		APITokenHint:   model.TokenPreview(cfg.APIToken),
		Email:          cfg.Email,
		CreatedAt:      cfg.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      cfg.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// installationRequest parses the {id} path value and checks the feature is
// available.
func (h *Handler) installationRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if h.Installations == nil {
		writeError(w, http.StatusServiceUnavailable, "installation config requires PAGESDNS_ENCRYPTION_KEY")
		return 0, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid installation id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeInstallationError(w http.ResponseWriter, id int64, err error) {
	switch {
	case errors.Is(err, driven.ErrNoFieldsToUpdate):
		writeError(w, http.StatusBadRequest, "no fields to update")
	case errors.Is(err, driven.ErrInstallationNotFound):
		writeError(w, http.StatusNotFound, "installation not found")
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusServiceUnavailable, "installation config requires PAGESDNS_ENCRYPTION_KEY")
	case model.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("installation config operation failed", "installation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) forgetProvider(id int64) {
	if h.Providers != nil {
		h.Providers.Forget(id)
	}
}
