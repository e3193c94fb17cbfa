package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mailroute/internal/domain"
	"mailroute/internal/service"
)

// API exposes the administrative surface: provider and address registries,
// routing rules, templates, the message queue, and scheduler control.
type API struct {
	Svc *service.Service
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/providers", a.handleCreateProvider).Methods(http.MethodPost)
	r.HandleFunc("/v1/providers", a.handleListProviders).Methods(http.MethodGet)
	r.HandleFunc("/v1/providers/primary", a.handleGetPrimary).Methods(http.MethodGet)
	r.HandleFunc("/v1/providers/{id}/primary", a.handleSetPrimary).Methods(http.MethodPost)
	r.HandleFunc("/v1/providers/{id}/active", a.handleSetProviderActive).Methods(http.MethodPut)
	r.HandleFunc("/v1/providers/{id}/settings", a.handleUpdateSettings).Methods(http.MethodPut)
	r.HandleFunc("/v1/providers/{id}/addresses", a.handleListAddresses).Methods(http.MethodGet)

	r.HandleFunc("/v1/addresses", a.handleCreateAddress).Methods(http.MethodPost)
	r.HandleFunc("/v1/addresses/{id}", a.handleDeleteAddress).Methods(http.MethodDelete)
	r.HandleFunc("/v1/addresses/{id}/active", a.handleSetAddressActive).Methods(http.MethodPut)

	r.HandleFunc("/v1/rules", a.handleCreateRule).Methods(http.MethodPost)
	r.HandleFunc("/v1/rules", a.handleListRules).Methods(http.MethodGet)
	r.HandleFunc("/v1/rules/{id}", a.handleDeleteRule).Methods(http.MethodDelete)

	r.HandleFunc("/v1/templates", a.handleCreateTemplate).Methods(http.MethodPost)
	r.HandleFunc("/v1/templates", a.handleListTemplates).Methods(http.MethodGet)
	r.HandleFunc("/v1/templates/{id}", a.handleGetTemplate).Methods(http.MethodGet)
	r.HandleFunc("/v1/templates/{id}", a.handleUpdateTemplate).Methods(http.MethodPut)
	r.HandleFunc("/v1/templates/{id}", a.handleDeleteTemplate).Methods(http.MethodDelete)

	r.HandleFunc("/v1/messages", a.handleEnqueue).Methods(http.MethodPost)
	r.HandleFunc("/v1/messages", a.handleListMessages).Methods(http.MethodGet)
	r.HandleFunc("/v1/messages/{id}", a.handleGetMessage).Methods(http.MethodGet)
	r.HandleFunc("/v1/messages/{id}/resend", a.handleResend).Methods(http.MethodPost)

	r.HandleFunc("/v1/scheduler", a.handleSchedulerStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/scheduler/schedule", a.handleSetSchedule).Methods(http.MethodPut)
	r.HandleFunc("/v1/scheduler/enabled", a.handleSetEnabled).Methods(http.MethodPut)
}

func (a *API) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	p, err := a.Svc.CreateProvider(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleListProviders(w http.ResponseWriter, r *http.Request) {
	var (
		out []domain.Provider
		err error
	)
	if r.URL.Query().Get("active") == "true" {
		out, err = a.Svc.ListActiveProviders(r.Context())
	} else {
		out, err = a.Svc.ListProviders(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetPrimary(w http.ResponseWriter, r *http.Request) {
	p, found, err := a.Svc.GetPrimaryProvider(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		http.Error(w, "no primary provider", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.Svc.SetPrimaryProvider(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (a *API) handleSetProviderActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := a.Svc.SetProviderActive(r.Context(), mux.Vars(r)["id"], req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := a.Svc.UpdateProviderSettings(r.Context(), mux.Vars(r)["id"], settings); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	adr, err := a.Svc.CreateAddress(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, adr)
}

func (a *API) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	out, err := a.Svc.ListAddressesForProvider(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.DeleteAddress(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSetAddressActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := a.Svc.SetAddressActive(r.Context(), mux.Vars(r)["id"], req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	rule, err := a.Svc.CreateRule(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	out, err := a.Svc.ListRules(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.DeleteRule(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req service.TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	tpl, err := a.Svc.CreateTemplate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (a *API) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	out, err := a.Svc.ListTemplates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := a.Svc.GetTemplate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (a *API) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req service.TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	tpl, err := a.Svc.UpdateTemplate(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (a *API) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.DeleteTemplate(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	resp, err := a.Svc.Enqueue(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	status := domain.MessageStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.StatusPending
	}
	if !domain.ValidMessageStatus(status) {
		http.Error(w, "unknown status "+string(status), http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := a.Svc.ListMessagesByStatus(r.Context(), status, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	m, err := a.Svc.GetMessage(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleResend(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.Resend(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.Svc.SchedulerStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type scheduleRequest struct {
	CronExpr string `json:"cronExpr"`
}

func (a *API) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	st, err := a.Svc.SetSchedule(r.Context(), req.CronExpr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *API) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	st, err := a.Svc.SetScheduleEnabled(r.Context(), req.Enabled)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
