package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Exchange describes one supported trading venue.
type Exchange struct {
	Name         string `yaml:"name"`
	DefaultQuote string `yaml:"default_quote"`
}

// ExchangesConfig holds the supported exchange set in display order.
type ExchangesConfig struct {
	Exchanges []Exchange `yaml:"exchanges"`

	byName map[string]*Exchange
}

// defaultExchanges is the built-in supported set.
var defaultExchanges = []Exchange{
	{Name: "Binance", DefaultQuote: "USDT"},
	{Name: "Bybit", DefaultQuote: "USDT"},
	{Name: "Coinbase", DefaultQuote: "USD"},
	{Name: "Kraken", DefaultQuote: "USD"},
	{Name: "KuCoin", DefaultQuote: "USDT"},
	{Name: "OKX", DefaultQuote: "USDT"},
	{Name: "Bitfinex", DefaultQuote: "USD"},
	{Name: "Gate.io", DefaultQuote: "USDT"},
	{Name: "Bitstamp", DefaultQuote: "USD"},
}

// DefaultExchanges returns the built-in supported exchange set.
func DefaultExchanges() *ExchangesConfig {
	cfg := &ExchangesConfig{Exchanges: append([]Exchange(nil), defaultExchanges...)}
	cfg.index()
	return cfg
}

// LoadExchangesConfig loads the supported exchange set from a YAML file.
// An empty path yields the built-in defaults.
func LoadExchangesConfig(path string) (*ExchangesConfig, error) {
	if path == "" {
		return DefaultExchanges(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exchanges config file: %w", err)
	}

	return ParseExchangesConfig(data)
}

// ParseExchangesConfig parses YAML exchange configuration.
func ParseExchangesConfig(data []byte) (*ExchangesConfig, error) {
	var cfg ExchangesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse exchanges config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.index()

	return &cfg, nil
}

// Validate validates the exchanges configuration
func (c *ExchangesConfig) Validate() error {
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("at least one exchange must be configured")
	}

	seen := make(map[string]bool)
	for i := range c.Exchanges {
		ex := &c.Exchanges[i]
		ex.Name = strings.TrimSpace(ex.Name)
		if ex.Name == "" {
			return fmt.Errorf("exchange name is required (entry %d)", i)
		}
		if seen[ex.Name] {
			return fmt.Errorf("duplicate exchange %s", ex.Name)
		}
		seen[ex.Name] = true
		if ex.DefaultQuote == "" {
			ex.DefaultQuote = "USD"
		}
	}

	return nil
}

func (c *ExchangesConfig) index() {
	c.byName = make(map[string]*Exchange, len(c.Exchanges))
	for i := range c.Exchanges {
		c.byName[c.Exchanges[i].Name] = &c.Exchanges[i]
	}
}

// Get returns the exchange with the given name.
func (c *ExchangesConfig) Get(name string) (*Exchange, bool) {
	ex, ok := c.byName[name]
	return ex, ok
}

// IsSupported checks if an exchange name is in the supported set.
// Names are case-sensitive.
func (c *ExchangesConfig) IsSupported(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Names returns all supported exchange names in display order.
func (c *ExchangesConfig) Names() []string {
	names := make([]string, 0, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		names = append(names, ex.Name)
	}
	return names
}
