// Package contract handles Kalshi daily-temperature market ticker parsing.
// Settlement records from older daemon versions carry only the ticker, so
// the city code has to be recovered from it.
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Supported market kinds.
const (
	KindHigh = "HIGH"
	KindLow  = "LOW"
)

// tickerRegex matches: KX{HIGH|LOW}T{city}-{YYMMMDD}[-{T|B}{strike}]
// Example: KXHIGHTPHX-26FEB12-T84
var tickerRegex = regexp.MustCompile(
	`^KX(HIGH|LOW)T([A-Z]{2,4})-(\d{2}[A-Z]{3}\d{2})(?:-([TB])(\d+(?:\.\d+)?))?$`,
)

// cityRegex is the relaxed form used to pull a city out of any ticker that
// embeds a series prefix, including event tickers without a date.
var cityRegex = regexp.MustCompile(`KX(?:HIGH|LOW)T(\w{2,4})-`)

var (
	ErrInvalidTicker = errors.New("contract: invalid ticker format")
	ErrInvalidDate   = errors.New("contract: invalid ticker date")
)

// Contract represents a parsed temperature market ticker.
type Contract struct {
	Ticker     string           `json:"ticker"`
	Kind       string           `json:"kind"`
	City       string           `json:"city"`
	TargetDate time.Time        `json:"target_date"`
	StrikeType string           `json:"strike_type,omitempty"` // "T" threshold or "B" bracket
	Strike     *decimal.Decimal `json:"strike,omitempty"`
}

// ParseTicker parses and validates a market ticker.
// Format: KX{HIGH|LOW}T{city}-{YYMMMDD}[-{T|B}{strike}]
func ParseTicker(ticker string) (*Contract, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	matches := tickerRegex.FindStringSubmatch(t)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected KX{HIGH|LOW}T{city}-{YYMMMDD}[-{T|B}{strike}])",
			ErrInvalidTicker, ticker)
	}

	date, err := time.Parse("06Jan02", matches[3])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDate, matches[3])
	}

	c := &Contract{
		Ticker:     t,
		Kind:       matches[1],
		City:       matches[2],
		TargetDate: date,
		StrikeType: matches[4],
	}
	if matches[5] != "" {
		strike, err := decimal.NewFromString(matches[5])
		if err != nil {
			return nil, fmt.Errorf("%w: strike %s", ErrInvalidTicker, matches[5])
		}
		c.Strike = &strike
	}
	return c, nil
}

// CityFromTicker extracts the city code from a ticker, returning false when
// the ticker does not carry a temperature series prefix.
func CityFromTicker(ticker string) (string, bool) {
	m := cityRegex.FindStringSubmatch(strings.ToUpper(ticker))
	if m == nil {
		return "", false
	}
	return m[1], true
}
