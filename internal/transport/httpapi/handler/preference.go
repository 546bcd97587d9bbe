package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kislikjeka/quicktrade/internal/platform/credential"
	"github.com/kislikjeka/quicktrade/internal/platform/preference"
)

// PreferenceStoreInterface defines the preference operations exposed over HTTP
type PreferenceStoreInterface interface {
	Snapshot() preference.Preferences
	Reset() error
	SetEnabledExchanges(names []string) error
	SetDisplayCurrency(currency string) error
	SetShowDust(show bool) error
	SetTheme(theme preference.Theme) error
	LastUsed(exchange string) (sub, pair string)
	SubaccountSettings(exchange, sub string) (json.RawMessage, bool)
	SetSubaccountSettings(exchange, sub string, settings json.RawMessage) error
}

// SubaccountChecker reports whether a subaccount exists
type SubaccountChecker interface {
	HasSubaccount(exchange, sub string) bool
}

// PreferenceHandler handles user preference requests
type PreferenceHandler struct {
	prefs    PreferenceStoreInterface
	subs     SubaccountChecker
	onChange func(preference.Preferences)
}

// NewPreferenceHandler creates a new preference handler. onChange, when set,
// receives the preferences after every successful update.
func NewPreferenceHandler(prefs PreferenceStoreInterface, subs SubaccountChecker, onChange func(preference.Preferences)) *PreferenceHandler {
	return &PreferenceHandler{
		prefs:    prefs,
		subs:     subs,
		onChange: onChange,
	}
}

// SetExchangesRequest represents the enabled exchanges update
type SetExchangesRequest struct {
	Exchanges []string `json:"exchanges"`
}

// SetCurrencyRequest represents the display currency update
type SetCurrencyRequest struct {
	Currency string `json:"currency"`
}

// SetShowDustRequest represents the dust visibility update
type SetShowDustRequest struct {
	ShowDust *bool `json:"show_dust"`
}

// SetThemeRequest represents the theme update
type SetThemeRequest struct {
	Theme string `json:"theme"`
}

// LastUsedResponse is the subaccount and pair last used on an exchange
type LastUsedResponse struct {
	Exchange   string `json:"exchange"`
	Subaccount string `json:"subaccount"`
	Pair       string `json:"pair"`
}

// GetPreferences handles GET /preferences
func (h *PreferenceHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.prefs.Snapshot())
}

// ResetPreferences handles DELETE /preferences
func (h *PreferenceHandler) ResetPreferences(w http.ResponseWriter, r *http.Request) {
	h.apply(w, h.prefs.Reset())
}

// SetEnabledExchanges handles PUT /preferences/exchanges
func (h *PreferenceHandler) SetEnabledExchanges(w http.ResponseWriter, r *http.Request) {
	var req SetExchangesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, h.prefs.SetEnabledExchanges(req.Exchanges))
}

// SetDisplayCurrency handles PUT /preferences/display-currency
func (h *PreferenceHandler) SetDisplayCurrency(w http.ResponseWriter, r *http.Request) {
	var req SetCurrencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, h.prefs.SetDisplayCurrency(req.Currency))
}

// SetShowDust handles PUT /preferences/show-dust
func (h *PreferenceHandler) SetShowDust(w http.ResponseWriter, r *http.Request) {
	var req SetShowDustRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ShowDust == nil {
		respondWithError(w, http.StatusBadRequest, "show_dust is required")
		return
	}
	h.apply(w, h.prefs.SetShowDust(*req.ShowDust))
}

// SetTheme handles PUT /preferences/theme
func (h *PreferenceHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req SetThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, h.prefs.SetTheme(preference.Theme(req.Theme)))
}

// GetLastUsed handles GET /preferences/last-used/{exchange}
func (h *PreferenceHandler) GetLastUsed(w http.ResponseWriter, r *http.Request) {
	exchange := pathParam(r, "exchange")
	sub, pair := h.prefs.LastUsed(exchange)
	respondWithJSON(w, http.StatusOK, LastUsedResponse{Exchange: exchange, Subaccount: sub, Pair: pair})
}

// GetSubaccountSettings handles GET /exchanges/{exchange}/subaccounts/{name}/settings
func (h *PreferenceHandler) GetSubaccountSettings(w http.ResponseWriter, r *http.Request) {
	exchange, name := pathParam(r, "exchange"), pathParam(r, "name")
	if !h.requireSubaccount(w, exchange, name) {
		return
	}

	settings, ok := h.prefs.SubaccountSettings(exchange, name)
	if !ok {
		settings = json.RawMessage(`{}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(settings)
}

// PutSubaccountSettings handles PUT /exchanges/{exchange}/subaccounts/{name}/settings
func (h *PreferenceHandler) PutSubaccountSettings(w http.ResponseWriter, r *http.Request) {
	exchange, name := pathParam(r, "exchange"), pathParam(r, "name")
	if !h.requireSubaccount(w, exchange, name) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.prefs.SetSubaccountSettings(exchange, name, body); err != nil {
		respondWithAppError(w, err)
		return
	}
	h.changed()

	settings, _ := h.prefs.SubaccountSettings(exchange, name)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(settings)
}

func (h *PreferenceHandler) requireSubaccount(w http.ResponseWriter, exchange, name string) bool {
	if h.subs != nil && !h.subs.HasSubaccount(exchange, name) {
		respondWithAppError(w, fmt.Errorf("%w: %s/%s", credential.ErrSubaccountNotFound, exchange, name))
		return false
	}
	return true
}

// apply responds with the current preferences, or with err.
func (h *PreferenceHandler) apply(w http.ResponseWriter, err error) {
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	h.changed()
	respondWithJSON(w, http.StatusOK, h.prefs.Snapshot())
}

func (h *PreferenceHandler) changed() {
	if h.onChange != nil {
		h.onChange(h.prefs.Snapshot())
	}
}
