// Package provider fetches daily exchange rates from an HTTP rate provider
// serving the apilayer "exchangerates_data" timeseries API.
//
//	GET {url}/timeseries?start_date=2022-12-01&end_date=2022-12-02&base=USD&symbols=EUR,RUB
//	apikey: <key>
//
//	{"success": true, "base": "USD", "rates": {"2022-12-01": {"EUR": 0.94985, "RUB": 61.214998}}}
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/pricedb"
	"github.com/etnz/pricedb/date"
	"github.com/shopspring/decimal"
)

// DefaultRatesPath locates the per-day rate table in a timeseries response.
const DefaultRatesPath = "$.rates"

// dayFormat is the format of the request parameters and response keys.
const dayFormat = "2006-01-02"

// errorPaths locate a human readable message in an error response, tried in order.
var errorPaths = []string{"$.error.info", "$.error.message", "$.message"}

// Client fetches the rates of a set of symbols against a base symbol.
//
// The zero value is not usable, at least URL, Base and Symbols must be set.
type Client struct {
	URL     string   // API root, the "/timeseries" endpoint is appended
	Key     string   // sent in the "apikey" header
	Base    string   // the symbol being priced, e.g. "USD"
	Symbols []string // the quote symbols, e.g. ["EUR", "RUB"]

	// Aliases renames symbols in the produced rates (e.g. "RUB" to "₽").
	// Symbols without alias are kept as is.
	Aliases map[string]string

	// RatesPath is the JSONPath of the per-day table in the response.
	// Empty means DefaultRatesPath.
	RatesPath string

	HTTP   *http.Client // nil means http.DefaultClient
	Logger *slog.Logger // nil means slog.Default()
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Client) ratesPath() string {
	if c.RatesPath == "" {
		return DefaultRatesPath
	}
	return c.RatesPath
}

// alias returns the configured alias of symbol, or symbol itself.
func (c *Client) alias(symbol string) string {
	if a, ok := c.Aliases[symbol]; ok && a != "" {
		return a
	}
	return symbol
}

// Fetch requests the rates of every day in r, bounds included, in a single
// request.
//
// Rates are returned sorted by date, then by provider symbol. Days outside r
// are dropped. Any transport failure, non-2xx status or unexpected response
// shape is returned as a *pricedb.ProviderError. Fetch never retries.
func (c *Client) Fetch(ctx context.Context, r date.Range) ([]pricedb.Rate, error) {
	r = r.Normalize()
	fail := func(status int, err error) error {
		return &pricedb.ProviderError{Range: r, StatusCode: status, Err: err}
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, fail(0, err)
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("cannot read response body: %w", err))
	}
	c.logger().Debug("provider response", "method", req.Method, "host", req.URL.Host, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	doc, derr := decodeJSON(body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := resp.Status
		if derr == nil {
			if m := errorMessage(doc); m != "" {
				msg = m
			}
		}
		return nil, fail(resp.StatusCode, fmt.Errorf("%s", msg))
	}
	if derr != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("invalid JSON response: %w", derr))
	}

	rates, err := c.decodeRates(r, doc)
	if err != nil {
		return nil, fail(resp.StatusCode, err)
	}
	return rates, nil
}

func (c *Client) newRequest(ctx context.Context, r date.Range) (*http.Request, error) {
	addr, err := url.JoinPath(c.URL, "timeseries")
	if err != nil {
		return nil, fmt.Errorf("invalid provider url %q: %w", c.URL, err)
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid provider url %q: %w", c.URL, err)
	}
	q := u.Query()
	q.Set("start_date", r.From.Format(dayFormat))
	q.Set("end_date", r.To.Format(dayFormat))
	q.Set("base", c.Base)
	q.Set("symbols", strings.Join(c.Symbols, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.Key)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// decodeJSON decodes body keeping numbers as json.Number so prices are not
// rounded through float64.
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// unsuccessful reports whether doc is an error envelope: apilayer reports some
// failures with a 200 status and success=false.
func unsuccessful(doc any) bool {
	v, err := jsonpath.Get("$.success", doc)
	ok, isBool := v.(bool)
	return err == nil && isBool && !ok
}

// errorMessage extracts the first message found in an error envelope.
func errorMessage(doc any) string {
	for _, p := range errorPaths {
		v, err := jsonpath.Get(p, doc)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// quote is a single price read from the response, before aliasing.
type quote struct {
	on     date.Date
	symbol string
	price  decimal.Decimal
}

func (c *Client) decodeRates(r date.Range, doc any) ([]pricedb.Rate, error) {
	if unsuccessful(doc) {
		msg := errorMessage(doc)
		if msg == "" {
			msg = "unsuccessful response"
		}
		return nil, fmt.Errorf("%s", msg)
	}

	table, err := jsonpath.Get(c.ratesPath(), doc)
	if err != nil {
		return nil, fmt.Errorf("cannot find rates at %q: %w", c.ratesPath(), err)
	}
	days, ok := table.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("rates at %q is a %T, want an object", c.ratesPath(), table)
	}

	var quotes []quote
	for key, v := range days {
		t, err := time.Parse(dayFormat, key)
		if err != nil {
			return nil, fmt.Errorf("invalid day %q: %w", key, err)
		}
		on := date.FromTime(t)
		if !r.Contains(on) {
			c.logger().Warn("provider returned a day out of the requested range", "day", key, "range", r.String())
			continue
		}
		prices, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("rates of %s is a %T, want an object", key, v)
		}
		for symbol, p := range prices {
			n, ok := p.(json.Number)
			if !ok {
				return nil, fmt.Errorf("rate of %s on %s is a %T, want a number", symbol, key, p)
			}
			price, err := decimal.NewFromString(n.String())
			if err != nil {
				return nil, fmt.Errorf("invalid rate of %s on %s: %w", symbol, key, err)
			}
			quotes = append(quotes, quote{on: on, symbol: symbol, price: price})
		}
	}

	slices.SortFunc(quotes, func(a, b quote) int {
		if n := a.on.Compare(b.on); n != 0 {
			return n
		}
		return strings.Compare(a.symbol, b.symbol)
	})

	base := c.alias(c.Base)
	rates := make([]pricedb.Rate, 0, len(quotes))
	for _, q := range quotes {
		rate, err := pricedb.NewRate(q.on, base, q.price, c.alias(q.symbol))
		if err != nil {
			return nil, fmt.Errorf("invalid rate of %s on %s: %w", q.symbol, q.on, err)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

var _ pricedb.Fetcher = (*Client)(nil)
