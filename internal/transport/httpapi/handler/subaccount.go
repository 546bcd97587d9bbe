package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kislikjeka/quicktrade/internal/module/account"
	"github.com/kislikjeka/quicktrade/internal/platform/credential"
	"github.com/kislikjeka/quicktrade/pkg/config"
)

// AccountServiceInterface defines the subaccount workflow operations
type AccountServiceInterface interface {
	AddSubaccount(exchange, name string) (string, error)
	RenameSubaccount(exchange, oldName, newName string) error
	DeleteSubaccount(exchange, sub string) error
	SelectSubaccount(exchange, sub string) (string, error)
	Overview() []account.ExchangeOverview
}

// CredentialEditorInterface defines credential and edit lock operations
type CredentialEditorInterface interface {
	UpdateCredentials(exchange, sub, apiKey, apiSecret string) error
	BeginEdit(exchange, sub string) error
	CancelEdit() (credential.Key, bool)
	EditLock() (credential.Key, bool)
	State(exchange, sub string) (credential.EditState, error)
	Rows() []credential.Row
	ExchangeRows(exchange string) []credential.Row
	Subaccounts(exchange string) []string
}

// SubaccountHandler handles exchange and subaccount requests
type SubaccountHandler struct {
	accounts  AccountServiceInterface
	creds     CredentialEditorInterface
	exchanges *config.ExchangesConfig
}

// NewSubaccountHandler creates a new subaccount handler
func NewSubaccountHandler(accounts AccountServiceInterface, creds CredentialEditorInterface, exchanges *config.ExchangesConfig) *SubaccountHandler {
	return &SubaccountHandler{
		accounts:  accounts,
		creds:     creds,
		exchanges: exchanges,
	}
}

// ExchangeResponse is one supported exchange
type ExchangeResponse struct {
	Name         string `json:"name"`
	DefaultQuote string `json:"default_quote"`
	Subaccounts  int    `json:"subaccounts"`
}

// CreateSubaccountRequest represents the subaccount creation request.
// An empty name picks the next free default name.
type CreateSubaccountRequest struct {
	Name string `json:"name"`
}

// RenameSubaccountRequest represents the rename request
type RenameSubaccountRequest struct {
	Name string `json:"name"`
}

// UpdateCredentialsRequest represents the credential update request
type UpdateCredentialsRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// SubaccountResponse represents a subaccount after a mutation
type SubaccountResponse struct {
	Exchange   string               `json:"exchange"`
	Subaccount string               `json:"subaccount"`
	State      credential.EditState `json:"state"`
}

// SelectResponse is the subaccount made active and its last traded pair
type SelectResponse struct {
	Exchange   string `json:"exchange"`
	Subaccount string `json:"subaccount"`
	LastPair   string `json:"last_pair"`
}

// EditLockResponse reports the subaccount under edit, if any
type EditLockResponse struct {
	Locked bool            `json:"locked"`
	Key    *credential.Key `json:"key,omitempty"`
}

// ListExchanges handles GET /exchanges
func (h *SubaccountHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	out := make([]ExchangeResponse, 0, len(h.exchanges.Exchanges))
	for _, ex := range h.exchanges.Exchanges {
		out = append(out, ExchangeResponse{
			Name:         ex.Name,
			DefaultQuote: ex.DefaultQuote,
			Subaccounts:  len(h.creds.Subaccounts(ex.Name)),
		})
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"exchanges": out})
}

// GetOverview handles GET /overview
func (h *SubaccountHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"exchanges": h.accounts.Overview()})
}

// ListRows handles GET /subaccounts and GET /exchanges/{exchange}/subaccounts
func (h *SubaccountHandler) ListRows(w http.ResponseWriter, r *http.Request) {
	var rows []credential.Row
	if exchange := pathParam(r, "exchange"); exchange != "" {
		rows = h.creds.ExchangeRows(exchange)
	} else {
		rows = h.creds.Rows()
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"subaccounts": rows})
}

// CreateSubaccount handles POST /exchanges/{exchange}/subaccounts
func (h *SubaccountHandler) CreateSubaccount(w http.ResponseWriter, r *http.Request) {
	exchange := pathParam(r, "exchange")

	var req CreateSubaccountRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	name, err := h.accounts.AddSubaccount(exchange, req.Name)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	h.respondSubaccount(w, http.StatusCreated, exchange, name)
}

// RenameSubaccount handles PUT /exchanges/{exchange}/subaccounts/{name}
func (h *SubaccountHandler) RenameSubaccount(w http.ResponseWriter, r *http.Request) {
	exchange, name := pathParam(r, "exchange"), pathParam(r, "name")

	var req RenameSubaccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.accounts.RenameSubaccount(exchange, name, req.Name); err != nil {
		respondWithAppError(w, err)
		return
	}

	renamed := strings.TrimSpace(req.Name)
	h.respondSubaccount(w, http.StatusOK, exchange, renamed)
}

// DeleteSubaccount handles DELETE /exchanges/{exchange}/subaccounts/{name}
func (h *SubaccountHandler) DeleteSubaccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteSubaccount(pathParam(r, "exchange"), pathParam(r, "name")); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCredentials handles PUT /exchanges/{exchange}/subaccounts/{name}/credentials
func (h *SubaccountHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	exchange, name := pathParam(r, "exchange"), pathParam(r, "name")

	var req UpdateCredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.creds.UpdateCredentials(exchange, name, req.APIKey, req.APISecret); err != nil {
		respondWithAppError(w, err)
		return
	}
	h.respondSubaccount(w, http.StatusOK, exchange, name)
}

// SelectSubaccount handles POST /exchanges/{exchange}/subaccounts/{name}/select
func (h *SubaccountHandler) SelectSubaccount(w http.ResponseWriter, r *http.Request) {
	exchange, name := pathParam(r, "exchange"), pathParam(r, "name")

	pair, err := h.accounts.SelectSubaccount(exchange, name)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SelectResponse{Exchange: exchange, Subaccount: name, LastPair: pair})
}

// BeginEdit handles POST /exchanges/{exchange}/subaccounts/{name}/edit
func (h *SubaccountHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	exchange, name := pathParam(r, "exchange"), pathParam(r, "name")

	if err := h.creds.BeginEdit(exchange, name); err != nil {
		respondWithAppError(w, err)
		return
	}
	h.respondSubaccount(w, http.StatusOK, exchange, name)
}

// GetEditLock handles GET /edit
func (h *SubaccountHandler) GetEditLock(w http.ResponseWriter, r *http.Request) {
	key, ok := h.creds.EditLock()
	respondWithJSON(w, http.StatusOK, lockResponse(key, ok))
}

// CancelEdit handles DELETE /edit
func (h *SubaccountHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	key, ok := h.creds.CancelEdit()
	respondWithJSON(w, http.StatusOK, lockResponse(key, ok))
}

func (h *SubaccountHandler) respondSubaccount(w http.ResponseWriter, status int, exchange, name string) {
	state, err := h.creds.State(exchange, name)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, status, SubaccountResponse{Exchange: exchange, Subaccount: name, State: state})
}

func lockResponse(key credential.Key, ok bool) EditLockResponse {
	if !ok {
		return EditLockResponse{}
	}
	return EditLockResponse{Locked: true, Key: &key}
}

// pathParam returns a chi URL parameter with its path escaping removed.
// Chi matches against RawPath when the request has one (an escaped "/" in
// a name), otherwise against the already decoded Path.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}
