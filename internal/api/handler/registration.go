package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/regwhelp/internal/api/response"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/storage"
)

// RegistrationHandler handles registration record endpoints
type RegistrationHandler struct {
	store storage.RecordStore
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(store storage.RecordStore) *RegistrationHandler {
	return &RegistrationHandler{store: store}
}

// List handles GET /api/v1/registrations
func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListRecords(r.Context())
	if err != nil {
		WriteError(w, model.NewStorageError("list", "", err))
		return
	}

	out := response.RegistrationList{Registrations: make([]response.Registration, len(records))}
	for i, rec := range records {
		out.Registrations[i] = response.RegistrationFromModel(rec)
	}
	response.JSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/registrations/{account}
func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	account := strings.TrimSpace(mux.Vars(r)["account"])
	if account == "" {
		WriteError(w, NewInvalidRequestError("account is required"))
		return
	}

	rec, err := h.store.FindRecord(r.Context(), account)
	if err != nil {
		WriteError(w, model.NewStorageError("find", account, err))
		return
	}
	response.JSON(w, http.StatusOK, response.RegistrationFromModel(rec))
}
