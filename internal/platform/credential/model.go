package credential

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxSubaccountNameLength bounds subaccount names.
const MaxSubaccountNameLength = 64

// Credential is the API key pair of one subaccount.
type Credential struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// Complete reports whether both key and secret are set.
func (c Credential) Complete() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// MaskedKey returns the API key with everything but the last four
// characters hidden.
func (c Credential) MaskedKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) <= 4 {
		return "****"
	}
	return "****" + c.APIKey[len(c.APIKey)-4:]
}

// Key identifies a subaccount store-wide.
type Key struct {
	Exchange   string `json:"exchange"`
	Subaccount string `json:"subaccount"`
}

// String renders the key as "exchange:subaccount".
func (k Key) String() string {
	return k.Exchange + ":" + k.Subaccount
}

// Subaccount is a named credential slot.
type Subaccount struct {
	Name       string     `json:"name"`
	Credential Credential `json:"credential"`
}

// ExchangeEntry is an exchange with its subaccounts in insertion order.
type ExchangeEntry struct {
	Name        string       `json:"name"`
	Subaccounts []Subaccount `json:"subaccounts"`
}

func (e *ExchangeEntry) index(name string) int {
	for i := range e.Subaccounts {
		if e.Subaccounts[i].Name == name {
			return i
		}
	}
	return -1
}

// Document is the in-memory form of api_keys.json. It keeps exchanges and
// subaccounts in insertion order and encodes as
// {"<exchange>": {"<subaccount>": {"api_key": "", "api_secret": ""}}}.
type Document struct {
	Exchanges []ExchangeEntry
}

func (d *Document) exchange(name string) *ExchangeEntry {
	for i := range d.Exchanges {
		if d.Exchanges[i].Name == name {
			return &d.Exchanges[i]
		}
	}
	return nil
}

func (d *Document) lookup(exchange, sub string) *Subaccount {
	ex := d.exchange(exchange)
	if ex == nil {
		return nil
	}
	if i := ex.index(sub); i >= 0 {
		return &ex.Subaccounts[i]
	}
	return nil
}

func (d *Document) add(exchange string, sub Subaccount) {
	ex := d.exchange(exchange)
	if ex == nil {
		d.Exchanges = append(d.Exchanges, ExchangeEntry{Name: exchange})
		ex = &d.Exchanges[len(d.Exchanges)-1]
	}
	ex.Subaccounts = append(ex.Subaccounts, sub)
}

// remove deletes a subaccount and prunes its exchange when emptied.
func (d *Document) remove(exchange, sub string) bool {
	for i := range d.Exchanges {
		ex := &d.Exchanges[i]
		if ex.Name != exchange {
			continue
		}
		j := ex.index(sub)
		if j < 0 {
			return false
		}
		ex.Subaccounts = append(ex.Subaccounts[:j], ex.Subaccounts[j+1:]...)
		if len(ex.Subaccounts) == 0 {
			d.Exchanges = append(d.Exchanges[:i], d.Exchanges[i+1:]...)
		}
		return true
	}
	return false
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := &Document{Exchanges: make([]ExchangeEntry, len(d.Exchanges))}
	for i, ex := range d.Exchanges {
		out.Exchanges[i] = ExchangeEntry{
			Name:        ex.Name,
			Subaccounts: append([]Subaccount(nil), ex.Subaccounts...),
		}
	}
	return out
}

// MarshalJSON encodes the document as nested objects in insertion order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ex := range d.Exchanges {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, ex.Name); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, sub := range ex.Subaccounts {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, sub.Name); err != nil {
				return nil, err
			}
			cred, err := json.Marshal(sub.Credential)
			if err != nil {
				return nil, err
			}
			buf.Write(cred)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}

// UnmarshalJSON decodes nested objects keeping the order found in the input.
// Exchanges without subaccounts are dropped; a repeated key replaces the
// earlier value in place.
func (d *Document) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	var doc Document
	for dec.More() {
		exchange, err := readKey(dec)
		if err != nil {
			return err
		}
		if err := expectDelim(dec, '{'); err != nil {
			return fmt.Errorf("exchange %q: %w", exchange, err)
		}
		for dec.More() {
			name, err := readKey(dec)
			if err != nil {
				return err
			}
			var cred Credential
			if err := dec.Decode(&cred); err != nil {
				return fmt.Errorf("subaccount %q: %w", name, err)
			}
			if existing := doc.lookup(exchange, name); existing != nil {
				existing.Credential = cred
				continue
			}
			doc.add(exchange, Subaccount{Name: name, Credential: cred})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}

	*d = doc
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if got, ok := tok.(json.Delim); !ok || got != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

// normalizeName trims a subaccount name and checks its bounds.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrMissingSubaccountName
	}
	if utf8.RuneCountInString(name) > MaxSubaccountNameLength {
		return "", ErrSubaccountNameTooLong
	}
	return name, nil
}
