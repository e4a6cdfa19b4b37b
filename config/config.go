// Package config loads the ledger-manager configuration.
//
// Settings are merged from, by increasing priority: built-in defaults, the user
// configuration file (<user config dir>/ledger-manager/config.yaml), the local
// configuration file (./config.yaml or the one given explicitly), a .env file
// in the working directory, and LM_* environment variables, e.g.
// LM_EXCHANGE_RATES_API_SETTINGS_API_KEY.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/etnz/pricedb/date"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName names the directory of the user configuration file.
	AppName = "ledger-manager"
	// DefaultFile is the configuration file looked up in the working directory.
	DefaultFile = "config.yaml"
	// EnvPrefix prefixes the environment variables overriding settings.
	EnvPrefix = "LM"
)

// Store drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete configuration.
type Config struct {
	TransactionsPath string        `mapstructure:"transactions_path" json:"transactions_path"`
	ExchangeRates    ExchangeRates `mapstructure:"exchange_rates_api_settings" json:"exchange_rates_api_settings"`
	PriceDB          PriceDB       `mapstructure:"price_db_settings" json:"price_db_settings"`
}

// ExchangeRates configures the rate provider.
type ExchangeRates struct {
	APIURL          string            `mapstructure:"api_url" json:"api_url"`
	APIKey          string            `mapstructure:"api_key" json:"api_key"`
	MainCurrency    string            `mapstructure:"main_currency" json:"main_currency"`
	Currencies      []string          `mapstructure:"currencies" json:"currencies"`
	CurrencyAliases map[string]string `mapstructure:"currency_aliases" json:"currency_aliases"`
	RatesPath       string            `mapstructure:"rates_path" json:"rates_path"`
	Timeout         time.Duration     `mapstructure:"timeout" json:"timeout"`
	Cache           bool              `mapstructure:"cache" json:"cache"`
}

// MarshalJSON writes the timeout as a duration string.
func (e ExchangeRates) MarshalJSON() ([]byte, error) {
	type plain ExchangeRates
	return json.Marshal(struct {
		plain
		Timeout string `json:"timeout"`
	}{plain(e), e.Timeout.String()})
}

// PriceDB configures the price database.
type PriceDB struct {
	Path      string    `mapstructure:"path" json:"path"`
	StartDate date.Date `mapstructure:"start_date" json:"start_date"`
	Driver    string    `mapstructure:"driver" json:"driver"`
	Workers   int       `mapstructure:"workers" json:"workers"`
}

var defaults = map[string]any{
	"transactions_path":                            "",
	"exchange_rates_api_settings.api_url":          "https://api.apilayer.com/exchangerates_data",
	"exchange_rates_api_settings.api_key":          "",
	"exchange_rates_api_settings.main_currency":    "USD",
	"exchange_rates_api_settings.currencies":       []string{"EUR"},
	"exchange_rates_api_settings.currency_aliases": map[string]string{},
	"exchange_rates_api_settings.rates_path":       "$.rates",
	"exchange_rates_api_settings.timeout":          "30s",
	"exchange_rates_api_settings.cache":            false,
	"price_db_settings.path":                       "prices.db",
	"price_db_settings.start_date":                 "2020-01-01",
	"price_db_settings.driver":                     DriverFile,
	"price_db_settings.workers":                    1,
}

// UserFile returns the path of the user configuration file, empty if the user
// configuration directory is unknown.
func UserFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, DefaultFile)
}

// Load reads and validates the configuration.
//
// An empty path means DefaultFile in the working directory, which may be
// missing. A non empty path must exist.
func Load(path string) (*Config, error) {
	// a missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if f := UserFile(); f != "" {
		if err := merge(v, f, false); err != nil {
			return nil, err
		}
	}
	required := path != ""
	if path == "" {
		path = DefaultFile
	}
	if err := merge(v, path, required); err != nil {
		return nil, err
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		timeToDateHook,
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	cfg.normalize()
	if err := cfg.Validate(date.Today()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge merges the file at path into v.
func merge(v *viper.Viper, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("cannot read configuration file: %w", err)
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("cannot read configuration file %q: %w", path, err)
	}
	return nil
}

// timeToDateHook converts YAML timestamps to dates.
func timeToDateHook(from, to reflect.Type, data any) (any, error) {
	if t, ok := data.(time.Time); ok && to == reflect.TypeOf(date.Date{}) {
		return date.FromTime(t), nil
	}
	return data, nil
}

// normalize upper-cases currency codes. Configuration keys are case
// insensitive, so alias keys come lower-cased.
func (c *Config) normalize() {
	e := &c.ExchangeRates
	e.MainCurrency = strings.ToUpper(strings.TrimSpace(e.MainCurrency))
	for i, cur := range e.Currencies {
		e.Currencies[i] = strings.ToUpper(strings.TrimSpace(cur))
	}
	aliases := make(map[string]string, len(e.CurrencyAliases))
	for k, a := range e.CurrencyAliases {
		aliases[strings.ToUpper(k)] = a
	}
	e.CurrencyAliases = aliases
	c.PriceDB.Driver = strings.ToLower(c.PriceDB.Driver)
}

// Validate reports every invalid setting, given today's date.
func (c *Config) Validate(today date.Date) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	e := c.ExchangeRates
	if u, err := url.Parse(e.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		fail("exchange_rates_api_settings.api_url %q is not an absolute url", e.APIURL)
	}
	if money.GetCurrency(e.MainCurrency) == nil {
		fail("exchange_rates_api_settings.main_currency %q is not a known currency code", e.MainCurrency)
	}
	if len(e.Currencies) == 0 {
		fail("exchange_rates_api_settings.currencies is empty")
	}
	for _, cur := range e.Currencies {
		if money.GetCurrency(cur) == nil {
			fail("exchange_rates_api_settings.currencies: %q is not a known currency code", cur)
		}
	}
	for k, a := range e.CurrencyAliases {
		if a == "" || strings.ContainsAny(a, " \t\n\f\r") {
			fail("exchange_rates_api_settings.currency_aliases: invalid alias %q for %s", a, k)
		}
	}
	if e.Timeout <= 0 {
		fail("exchange_rates_api_settings.timeout must be positive")
	}

	p := c.PriceDB
	if p.Path == "" {
		fail("price_db_settings.path is empty")
	}
	if p.StartDate.IsZero() {
		fail("price_db_settings.start_date is missing")
	} else if p.StartDate.After(today) {
		fail("price_db_settings.start_date %v is in the future", p.StartDate)
	}
	if p.Driver != DriverFile && p.Driver != DriverSQLite {
		fail("price_db_settings.driver %q is neither %q nor %q", p.Driver, DriverFile, DriverSQLite)
	}
	if p.Workers < 1 {
		fail("price_db_settings.workers must be at least 1")
	}
	return errors.Join(errs...)
}

// Masked returns a copy of c with the API key hidden, for display.
func (c Config) Masked() Config {
	key := c.ExchangeRates.APIKey
	switch {
	case key == "":
	case len(key) <= 4:
		c.ExchangeRates.APIKey = "****"
	default:
		c.ExchangeRates.APIKey = "****" + key[len(key)-4:]
	}
	return c
}
