package rates

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"orusfx/internal/currency"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Source fetches the batch of rates for one base currency.
type Source interface {
	FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// StaticSource serves the rates declared in the currency table.
type StaticSource struct {
	table *currency.Table
}

func NewStaticSource(table *currency.Table) *StaticSource {
	return &StaticSource{table: table}
}

func (s *StaticSource) FetchRates(_ context.Context, base string) (map[string]decimal.Decimal, error) {
	if base != s.table.Base() {
		return nil, errors.Errorf("static rates are quoted against %s, not %s", s.table.Base(), base)
	}
	rates, err := s.table.StaticRates()
	if err != nil {
		return nil, errors.Wrap(err, "static rates")
	}
	return rates, nil
}

// HTTPSource reads `{"base": "USD", "rates": {"EUR": 0.92, ...}}` from an
// HTTP endpoint. The base is passed as the `base` query parameter.
type HTTPSource struct {
	url     string
	timeout time.Duration
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{url: url, timeout: timeout}
}

type ratesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (s *HTTPSource) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, errors.Wrap(context.DeadlineExceeded, "fetch rates")
	}

	agent := fiber.Get(s.url).
		QueryString("base=" + base).
		Timeout(timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, errors.Wrapf(errs[0], "fetch rates from %s", s.url)
	}
	if code != fiber.StatusOK {
		return nil, errors.Errorf("fetch rates from %s: unexpected status %d", s.url, code)
	}

	var resp ratesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode rates response")
	}
	if resp.Base != "" && !strings.EqualFold(resp.Base, base) {
		return nil, errors.Errorf("rates response quoted against %s, want %s", resp.Base, base)
	}

	rates := make(map[string]decimal.Decimal, len(resp.Rates))
	for code, rate := range resp.Rates {
		rates[strings.ToUpper(code)] = rate
	}
	return rates, nil
}
