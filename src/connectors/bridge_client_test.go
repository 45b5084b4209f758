package connectors

// Test index:
//  1. TestIsRetryableResp verifies retry decisions for various response codes and errors.
//  2. TestPlaceMarketOrder checks the order payload, auth header and fill decoding.
//  3. TestPlaceMarketOrderIsNotRetried asserts a failing order is sent exactly once.
//  4. TestListOpenPositionsRetriesServerErrors confirms reads retry transient failures.
//  5. TestPositionNotFound maps 404 and POSITION_CLOSED to venue.ErrPositionNotFound.
//  6. TestModifyPositionSendsOnlyGivenLevels checks partial modify payloads.
//  7. TestRejectedOrderWrapsErrOrderRejected validates trade server rejections.
//  8. TestGetQuoteWithoutPrices reports venue.ErrNoQuote.
//  9. TestRateLimiterHonoursContext ensures the limiter gives up when the context expires.

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"signalbridge/src/model"
	"signalbridge/src/venue"
)

func newTestClient(baseURL string) *BridgeClient {
	c := NewBridgeClient(Config{
		BridgeURL:     baseURL,
		BridgeToken:   "test-token",
		BridgeTimeout: 2 * time.Second,
		RetryAttempts: 3,
	})
	c.http.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)
	return c
}

func TestIsRetryableResp(t *testing.T) {
	cases := []struct {
		name string
		resp *resty.Response
		err  error
		want bool
	}{
		{name: "error present", err: assertError{}, want: true},
		{name: "server error", resp: fakeResponse(500), want: true},
		{name: "too many requests", resp: fakeResponse(429), want: true},
		{name: "timeout", resp: fakeResponse(408), want: true},
		{name: "ok response", resp: fakeResponse(200), want: false},
		{name: "not found", resp: fakeResponse(404), want: false},
		{name: "nil resp", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := isRetryableResp(tc.resp, tc.err)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestPlaceMarketOrder(t *testing.T) {
	var gotReq venue.OrderRequest
	var gotToken, gotMethod, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Bridge-Token")
		gotMethod = r.Method
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		_ = json.NewEncoder(w).Encode(APIResponse{Code: RetcodeDone, Data: mustJSON(venue.Fill{Ticket: 42, Price: 1.18015})})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	fill, err := client.PlaceMarketOrder(context.Background(), venue.OrderRequest{
		Symbol:     "EURUSDm",
		Direction:  model.DirectionLong,
		Lot:        0.05,
		StopLoss:   1.1750,
		TakeProfit: 1.1830,
		Comment:    "signalbridge abcd1234-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fill.Ticket != 42 || fill.Price != 1.18015 {
		t.Fatalf("unexpected fill: %+v", fill)
	}
	if gotMethod != http.MethodPost || gotPath != "/orders/market" {
		t.Fatalf("unexpected call %s %s", gotMethod, gotPath)
	}
	if gotToken != "test-token" {
		t.Fatalf("expected token header, got %q", gotToken)
	}
	if gotReq.Symbol != "EURUSDm" || gotReq.Lot != 0.05 || gotReq.StopLoss != 1.1750 {
		t.Fatalf("unexpected payload: %+v", gotReq)
	}
}

func TestPlaceMarketOrderIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.PlaceMarketOrder(context.Background(), venue.OrderRequest{Symbol: "EURUSD", Direction: model.DirectionLong, Lot: 0.01})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestListOpenPositionsRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(APIResponse{Code: RetcodeOK, Data: mustJSON([]venue.Position{
			{Ticket: 7, Symbol: "EURUSD", Direction: model.DirectionLong, Volume: 0.05, OpenPrice: 1.18},
		})})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	positions, err := client.ListOpenPositions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(positions) != 1 || positions[0].Ticket != 7 {
		t.Fatalf("unexpected positions: %+v", positions)
	}
}

func TestPositionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/positions/1":
			w.WriteHeader(http.StatusNotFound)
		case "/positions/2":
			_ = json.NewEncoder(w).Encode(APIResponse{Code: RetcodePositionClosed, Msg: "position closed"})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.ClosePosition(context.Background(), 1, nil); !errors.Is(err, venue.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound for 404, got %v", err)
	}
	sl := 1.18
	if err := client.ModifyPosition(context.Background(), 2, &sl, nil); !errors.Is(err, venue.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound for closed position, got %v", err)
	}
}

func TestModifyPositionSendsOnlyGivenLevels(t *testing.T) {
	var body map[string]interface{}
	var method, query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		query = r.URL.RawQuery
		raw, _ := io.ReadAll(r.Body)
		body = nil
		_ = json.Unmarshal(raw, &body)
		_ = json.NewEncoder(w).Encode(APIResponse{Code: RetcodeDone})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	sl := 1.1804
	if err := client.ModifyPosition(context.Background(), 9, &sl, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPut {
		t.Fatalf("expected PUT, got %s", method)
	}
	if body["stop_loss"] != 1.1804 {
		t.Fatalf("unexpected stop_loss in %v", body)
	}
	if _, ok := body["take_profit"]; ok {
		t.Fatalf("take_profit should be omitted: %v", body)
	}

	vol := 0.02
	if err := client.ClosePosition(context.Background(), 9, &vol); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodDelete || query != "volume=0.02" {
		t.Fatalf("unexpected close call %s ?%s", method, query)
	}
}

func TestRejectedOrderWrapsErrOrderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIResponse{Code: RetcodeNoMoney, Msg: "not enough money"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.PlaceMarketOrder(context.Background(), venue.OrderRequest{Symbol: "XAUUSD", Direction: model.DirectionShort, Lot: 5})
	if !errors.Is(err, venue.ErrOrderRejected) {
		t.Fatalf("expected ErrOrderRejected, got %v", err)
	}
	if GetErrorMsg(RetcodeNoMoney) != "TRADE_RETCODE_NO_MONEY" {
		t.Fatalf("unexpected message for %d", RetcodeNoMoney)
	}
	if GetErrorMsg(1) != "UNKNOWN_RETCODE_1" {
		t.Fatalf("unexpected message for unknown code")
	}
}

func TestGetQuoteWithoutPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIResponse{Code: RetcodeOK, Data: mustJSON(venue.Quote{Symbol: "GBPUSD"})})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.GetQuote(context.Background(), "GBPUSD"); !errors.Is(err, venue.ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIResponse{Code: RetcodeOK, Data: mustJSON(venue.Account{Balance: 1000, Equity: 990})})
	}))
	defer server.Close()

	client := NewBridgeClient(Config{BridgeURL: server.URL, BridgeTimeout: time.Second, RetryAttempts: 1, RatePerSecond: 0.001, RateBurst: 1})

	acct, err := client.GetAccountSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.Equity != 990 {
		t.Fatalf("unexpected account: %+v", acct)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.GetAccountSnapshot(ctx); err == nil {
		t.Fatalf("expected limiter to refuse the second call")
	}
}

type assertError struct{}

func (assertError) Error() string { return "err" }

func fakeResponse(status int) *resty.Response {
	return &resty.Response{RawResponse: &http.Response{StatusCode: status}}
}

func mustJSON(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
