package client

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Page is the list envelope the marketplace API wraps every collection-style
// response in.
type Page[T any] struct {
	Items      []T `json:"items"`
	ItemsCount int `json:"itemsCount"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
}

type apiError struct {
	Error string `json:"error"`
}

type Offer struct {
	CollectionID int             `json:"collectionId"`
	TokenID      string          `json:"tokenId"`
	Seller       string          `json:"seller"` // base64 public key as delivered by the API
	Price        decimal.Decimal `json:"price"`
	QuoteID      int             `json:"quoteId"`
	Metadata     json.RawMessage `json:"metadata"`
}

type Hold struct {
	CollectionID int    `json:"collectionId"`
	TokenID      string `json:"tokenId"`
	Owner        string `json:"owner"`
}

type Trade struct {
	Buyer        *string   `json:"buyer,omitempty"`
	Seller       string    `json:"seller"`
	CollectionID int       `json:"collectionId"`
	TokenID      int       `json:"tokenId"`
	Price        string    `json:"price"`
	QuoteID      int       `json:"quoteId"`
	TradeDate    Timestamp `json:"tradeDate"`
	Metadata     string    `json:"metadata"`
}

// the API delivers trade dates without a zone suffix
const bareTimestampLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time.Time that also decodes the zoneless timestamps the
// marketplace API delivers, e.g. "2021-03-25T08:50:49.622992". Zoneless
// values are taken as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		parsed, err = time.ParseInLocation(bareTimestampLayout, raw, time.UTC)
	}
	if err != nil {
		return err
	}

	t.Time = parsed
	return nil
}

type OffersPage = Page[Offer]
type HoldsPage = Page[Hold]
type TradesPage = Page[Trade]
