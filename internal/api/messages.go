package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	onceValidate sync.Once
)

func getValidator() *validator.Validate {
	onceValidate.Do(func() {
		validate = validator.New()
	})
	return validate
}

// PlaceOrderRequest mirrors the reference wire format, FoK flag included.
type PlaceOrderRequest struct {
	Side       string          `json:"side" validate:"required,oneof=bid ask buy sell"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	UserID     string          `json:"userId" validate:"required"`
	FillOrKill bool            `json:"FoK"`
}

type PlaceOrderResponse struct {
	FilledQuantity decimal.Decimal `json:"filledQuantity"`
}

type QuoteRequest struct {
	Side     string          `json:"side" validate:"required,oneof=bid ask buy sell"`
	Quantity decimal.Decimal `json:"quantity"`
	UserID   string          `json:"userId" validate:"required"`
}

type QuoteResponse struct {
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
}

// DepthEntry is one aggregated price bucket: which side it rests on and the
// total quantity at that exact price.
type DepthEntry struct {
	Type     string          `json:"type"`
	Quantity decimal.Decimal `json:"quantity"`
}

type DepthResponse struct {
	Depth map[string]DepthEntry `json:"depth"`
}

type BalanceResponse struct {
	Balances map[string]decimal.Decimal `json:"balances"`
}

type TickerResponse struct {
	BestBid   *decimal.Decimal `json:"bestBid,omitempty"`
	BestAsk   *decimal.Decimal `json:"bestAsk,omitempty"`
	LastPrice decimal.Decimal  `json:"lastPrice"`
}

// TradeMessage is the websocket trade-feed payload.
type TradeMessage struct {
	TradeID   string          `json:"tradeId"`
	Buyer     string          `json:"buyer"`
	Seller    string          `json:"seller"`
	Taker     string          `json:"taker"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
