package admin

import (
	"net/http"

	"github.com/getmockd/protomock/pkg/httputil"
	"github.com/getmockd/protomock/pkg/stub"
)

// HealthResponse is returned by the health route.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int    `json:"uptime"`
}

// Meta carries list totals.
type Meta struct {
	Total int `json:"total"`
}

// MappingsResponse lists stubs in match order.
type MappingsResponse struct {
	Mappings []*stub.Stub `json:"mappings"`
	Meta     Meta         `json:"meta"`
}

// RequestsResponse lists journaled requests, newest first.
type RequestsResponse struct {
	Requests               []stub.LoggedRequest `json:"requests"`
	Meta                   Meta                 `json:"meta"`
	RequestJournalDisabled bool                 `json:"requestJournalDisabled"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, HealthResponse{Status: "healthy", Uptime: a.Uptime()})
}

func (a *API) handleListMappings(w http.ResponseWriter, _ *http.Request) {
	stubs := a.store.List()
	httputil.WriteOK(w, MappingsResponse{Mappings: stubs, Meta: Meta{Total: len(stubs)}})
}

func (a *API) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	var st stub.Stub
	if err := httputil.DecodeJSON(r, &st); err != nil {
		httputil.WriteBadRequest(w, "invalid_json", err.Error())
		return
	}

	added, err := a.store.Add(&st)
	if err != nil {
		httputil.WriteBadRequest(w, "validation_error", err.Error())
		return
	}
	a.log.Debug("stub added", "id", added.ID, "name", added.Name)
	httputil.WriteCreated(w, added)
}

func (a *API) handleResetMappings(w http.ResponseWriter, _ *http.Request) {
	if a.loader == nil {
		a.store.Reset()
		httputil.WriteOK(w, Meta{Total: 0})
		return
	}

	stubs, err := a.loader()
	if err == nil {
		err = a.store.Replace(stubs)
	}
	if err != nil {
		a.log.Error("mapping reset failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}
	httputil.WriteOK(w, Meta{Total: a.store.Count()})
}

func (a *API) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st := a.store.Get(id)
	if st == nil {
		httputil.WriteNotFound(w, "not_found", "stub not found: "+id)
		return
	}
	httputil.WriteOK(w, st)
}

func (a *API) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.store.Delete(id) {
		httputil.WriteNotFound(w, "not_found", "stub not found: "+id)
		return
	}
	a.log.Debug("stub deleted", "id", id)
	httputil.WriteNoContent(w)
}

func (a *API) handleListRequests(w http.ResponseWriter, _ *http.Request) {
	if a.journal == nil {
		httputil.WriteOK(w, RequestsResponse{Requests: []stub.LoggedRequest{}, RequestJournalDisabled: true})
		return
	}
	reqs := a.journal.List()
	httputil.WriteOK(w, RequestsResponse{Requests: reqs, Meta: Meta{Total: len(reqs)}})
}

func (a *API) handleClearRequests(w http.ResponseWriter, _ *http.Request) {
	if a.journal == nil {
		httputil.WriteError(w, http.StatusConflict, "journal_disabled", "the request journal is disabled")
		return
	}
	a.journal.Reset()
	httputil.WriteNoContent(w)
}
