package httphandler

import (
	"net/http"
	"time"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
)

// RefreshToken forces an installation token refresh.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.Tokens.Refresh(r.Context())
	if tok == "" {
		h.logger.Error("manual token refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	msg := "Token refreshed successfully"
	if err != nil {
		h.logger.Warn("manual token refresh failed, fallback token in use", "error", err)
		msg = "Token refresh failed, using fallback token"
	}
	writeJSON(w, http.StatusOK, RefreshTokenResponse{Message: msg, TokenPreview: model.TokenPreview(tok)})
}

// UpdateCNAME points a domain at a target outside the webhook flow.
func (h *Handler) UpdateCNAME(w http.ResponseWriter, r *http.Request) {
	var req UpdateCNAMERequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.Records.UpdateRecord(r.Context(), req.Domain, req.Target, req.InstallationID)
	if err != nil {
		if model.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("manual CNAME update failed", "domain", req.Domain, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, UpdateCNAMEResponse{
		Message:  "CNAME record " + res.Action,
		Action:   res.Action,
		RecordID: res.RecordID,
	})
}

// TestStore writes a mapping directly without touching DNS.
func (h *Handler) TestStore(w http.ResponseWriter, r *http.Request) {
	var req TestStoreRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	mapping := model.DomainMapping{RepoName: req.RepoName, PagesURL: req.PagesURL, CustomDomain: req.CustomDomain}
	if err := model.ValidateMapping(&mapping); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prior, err := h.Mappings.Get(r.Context(), mapping.RepoName)
	if err != nil {
		h.logger.Error("failed to load mapping", "repo", mapping.RepoName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if prior != nil && prior.CustomDomain == mapping.CustomDomain {
		mapping.RecordID = prior.RecordID
	}

	if err := h.Mappings.Save(r.Context(), mapping); err != nil {
		if model.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to store mapping", "repo", mapping.RepoName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toMappingResponse(mapping))
}

// TestRemove deletes a mapping directly without touching DNS.
func (h *Handler) TestRemove(w http.ResponseWriter, r *http.Request) {
	var req TestRemoveRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	deleted, err := h.Mappings.Remove(r.Context(), req.RepoName)
	if err != nil {
		if model.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to remove mapping", "repo", req.RepoName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, TestRemoveResponse{RepoName: req.RepoName, Deleted: deleted})
}

// ListMappings returns every stored mapping.
func (h *Handler) ListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.Mappings.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list mappings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]MappingResponse, 0, len(mappings))
	for _, m := range mappings {
		resp = append(resp, toMappingResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMapping returns one mapping plus the CNAME the world currently sees.
func (h *Handler) GetMapping(w http.ResponseWriter, r *http.Request) {
	repo := r.PathValue("owner") + "/" + r.PathValue("repo")

	mapping, err := h.Mappings.Get(r.Context(), repo)
	if err != nil {
		if model.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to get mapping", "repo", repo, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if mapping == nil {
		writeError(w, http.StatusNotFound, "mapping not found")
		return
	}

	resp := toMappingResponse(*mapping)
	if mapping.HasDomain() && h.Resolver != nil {
		live, err := h.Resolver.LookupCNAME(r.Context(), mapping.CustomDomain)
		if err != nil {
			h.logger.Warn("live CNAME lookup failed", "domain", mapping.CustomDomain, "error", err)
			resp.Live = &LiveResolution{Error: "lookup failed"}
		} else {
			resp.Live = &LiveResolution{CNAME: live}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func toMappingResponse(m model.DomainMapping) MappingResponse {
	resp := MappingResponse{
		RepoName:     m.RepoName,
		PagesURL:     m.PagesURL,
		CustomDomain: m.CustomDomain,
		RecordID:     m.RecordID,
	}
	if !m.UpdatedAt.IsZero() {
		resp.UpdatedAt = m.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
