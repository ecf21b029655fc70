package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
)

type settingsService interface {
	Load(ctx context.Context) (domain.LoyaltySettings, error)
	Update(ctx context.Context, values map[string]string, updatedBy uuid.UUID) (domain.LoyaltySettings, error)
}

type SettingsHandler struct {
	settings settingsService
}

func NewSettingsHandler(svc settingsService) *SettingsHandler {
	return &SettingsHandler{settings: svc}
}

// Settings are exchanged in their stored string form so the admin page can round-trip them.
type updateSettingsRequest struct {
	Values map[string]string `json:"values"`
}

func (r updateSettingsRequest) Validate() []FieldError {
	var errs []FieldError
	if len(r.Values) == 0 {
		errs = append(errs, FieldError{Field: "values", Message: "required"})
	}
	for k := range r.Values {
		if !domain.IsKnownSetting(k) {
			errs = append(errs, FieldError{Field: "values." + k, Message: "unknown setting"})
		}
	}
	return errs
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Load(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{"values": s.Values()})
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actor, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	s, err := h.settings.Update(r.Context(), req.Values, actor)
	if err != nil {
		log.Warn("settings update failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{"values": s.Values()})
}
