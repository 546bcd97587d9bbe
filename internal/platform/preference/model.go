package preference

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// Theme is the UI colour scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}

// DefaultDisplayCurrency is used until the user picks one.
const DefaultDisplayCurrency = "USD"

// LastUsed is one entry of the last_used map. Exchange keys carry the
// selected subaccount; "exchange:subaccount" keys carry the selected pair.
type LastUsed struct {
	Subaccount string `json:"subaccount,omitempty"`
	Pair       string `json:"pair,omitempty"`
}

// Preferences is the in-memory form of user_prefs.json.
type Preferences struct {
	EnabledExchanges   []string                   `json:"enabled_exchanges"`
	DisplayCurrency    string                     `json:"display_currency"`
	ShowDust           bool                       `json:"show_dust"`
	Theme              Theme                      `json:"theme"`
	LastUsed           map[string]LastUsed        `json:"last_used"`
	SubaccountSettings map[string]json.RawMessage `json:"subaccount_settings"`

	// Extra holds top-level keys this version does not know about. They are
	// written back unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownKeys = []string{
	"enabled_exchanges",
	"display_currency",
	"show_dust",
	"theme",
	"last_used",
	"subaccount_settings",
}

// Defaults returns the preferences of a fresh installation.
func Defaults() Preferences {
	return Preferences{
		EnabledExchanges:   []string{},
		DisplayCurrency:    DefaultDisplayCurrency,
		Theme:              ThemeDark,
		LastUsed:           map[string]LastUsed{},
		SubaccountSettings: map[string]json.RawMessage{},
	}
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	out := p
	out.EnabledExchanges = slices.Clone(p.EnabledExchanges)
	out.LastUsed = maps.Clone(p.LastUsed)
	if out.LastUsed == nil {
		out.LastUsed = map[string]LastUsed{}
	}
	out.SubaccountSettings = cloneRaw(p.SubaccountSettings)
	if out.SubaccountSettings == nil {
		out.SubaccountSettings = map[string]json.RawMessage{}
	}
	out.Extra = cloneRaw(p.Extra)
	return out
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

type plain Preferences

// MarshalJSON writes the known fields followed by any preserved extra keys.
func (p Preferences) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(plain(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON fills missing fields with defaults and keeps unknown keys in
// Extra.
func (p *Preferences) UnmarshalJSON(data []byte) error {
	out := Defaults()
	if string(bytes.TrimSpace(data)) == "null" {
		*p = out
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := plain(out)
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	out = Preferences(decoded)

	// Explicit nulls on disk decode to nil; normalise them.
	if out.EnabledExchanges == nil {
		out.EnabledExchanges = []string{}
	}
	if out.LastUsed == nil {
		out.LastUsed = map[string]LastUsed{}
	}
	if out.SubaccountSettings == nil {
		out.SubaccountSettings = map[string]json.RawMessage{}
	}
	if out.DisplayCurrency == "" {
		out.DisplayCurrency = DefaultDisplayCurrency
	}
	if out.Theme == "" {
		out.Theme = ThemeDark
	}

	for _, k := range knownKeys {
		delete(raw, k)
	}
	out.Extra = nil
	if len(raw) > 0 {
		out.Extra = raw
	}
	compactAll(out.SubaccountSettings)
	compactAll(out.Extra)

	*p = out
	return nil
}

// compactAll strips the indentation the document writer adds to nested raw
// values, so a value read back from disk equals the one that was stored.
func compactAll(m map[string]json.RawMessage) {
	for k, v := range m {
		m[k] = compact(v)
	}
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

func subaccountKey(exchange, sub string) string {
	return exchange + ":" + sub
}
