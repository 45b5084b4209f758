// REST client for the terminal bridge.
// Reads retry on transient failures; order mutations never retry.
package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"signalbridge/src/venue"
)

const (
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// APIResponse is the envelope every bridge endpoint returns.
type APIResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type modifyRequest struct {
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}

// BridgeClient talks to the terminal bridge over HTTP and implements venue.Venue.
type BridgeClient struct {
	token   string
	baseURL string
	http    *resty.Client // reads, with retries
	orders  *resty.Client // mutations, single attempt
	limiter *rate.Limiter
}

var _ venue.Venue = (*BridgeClient)(nil)

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewBridgeClient(cfg Config) *BridgeClient {
	baseURL := cfg.BridgeURL
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8228"
		logger.Warnf("No bridge URL provided, using default: %s", baseURL)
	}
	retryCount := cfg.RetryAttempts - 1
	if retryCount < 0 {
		retryCount = 0
	}

	reads := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.BridgeTimeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	writes := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.BridgeTimeout)

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &BridgeClient{
		token:   cfg.BridgeToken,
		baseURL: baseURL,
		http:    reads,
		orders:  writes,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *BridgeClient) request(ctx context.Context, client *resty.Client) *resty.Request {
	req := client.R().SetContext(ctx)
	if c.token != "" {
		req = req.SetHeader("X-Bridge-Token", c.token)
	}
	return req
}

func (c *BridgeClient) doRequest(ctx context.Context, method, path string, body interface{}) (*APIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	client := c.http
	if method != http.MethodGet {
		client = c.orders
	}
	req := c.request(ctx, client)
	if body != nil {
		req = req.SetBody(body).SetHeader("Content-Type", "application/json")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}

	raw := resp.Body()

	if resp.StatusCode() == http.StatusNotFound {
		return nil, venue.ErrPositionNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(raw))
	}

	var apiResp APIResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, err
	}
	if !isSuccess(apiResp.Code) {
		return nil, codeError(apiResp)
	}

	return &apiResp, nil
}

func codeError(r APIResponse) error {
	switch r.Code {
	case RetcodePositionClosed:
		return venue.ErrPositionNotFound
	case RetcodeMarketClosed, RetcodeNoMoney, RetcodeInvalidVolume, RetcodeInvalidStops, RetcodeReject, RetcodeRequote:
		return fmt.Errorf("%w: %s (%d) %s", venue.ErrOrderRejected, GetErrorMsg(r.Code), r.Code, r.Msg)
	default:
		return fmt.Errorf("bridge error %s (%d): %s", GetErrorMsg(r.Code), r.Code, r.Msg)
	}
}

func decode(resp *APIResponse, out interface{}) error {
	if len(resp.Data) == 0 {
		return errors.New("empty response data")
	}
	return json.Unmarshal(resp.Data, out)
}

func (c *BridgeClient) PlaceMarketOrder(ctx context.Context, req venue.OrderRequest) (venue.Fill, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/orders/market", req)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"symbol":    req.Symbol,
			"direction": req.Direction,
			"lot":       req.Lot,
		}).WithError(err).Error("Market order failed")
		return venue.Fill{}, err
	}

	var fill venue.Fill
	if err := decode(resp, &fill); err != nil {
		return venue.Fill{}, fmt.Errorf("decode fill: %w", err)
	}
	if fill.Ticket == 0 {
		return venue.Fill{}, fmt.Errorf("%w: bridge returned no ticket", venue.ErrOrderRejected)
	}

	logger.WithFields(map[string]interface{}{
		"symbol": req.Symbol,
		"ticket": fill.Ticket,
		"price":  fill.Price,
		"lot":    req.Lot,
	}).Info("Market order filled")
	return fill, nil
}

func (c *BridgeClient) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit *float64) error {
	if stopLoss == nil && takeProfit == nil {
		return nil
	}
	path := "/positions/" + strconv.FormatInt(ticket, 10)
	_, err := c.doRequest(ctx, http.MethodPut, path, modifyRequest{StopLoss: stopLoss, TakeProfit: takeProfit})
	return err
}

func (c *BridgeClient) ClosePosition(ctx context.Context, ticket int64, volume *float64) error {
	path := "/positions/" + strconv.FormatInt(ticket, 10)
	if volume != nil {
		path += "?volume=" + strconv.FormatFloat(*volume, 'f', -1, 64)
	}
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	return err
}

func (c *BridgeClient) ListOpenPositions(ctx context.Context) ([]venue.Position, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/positions", nil)
	if err != nil {
		return nil, err
	}
	var positions []venue.Position
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return positions, nil
	}
	if err := json.Unmarshal(resp.Data, &positions); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return positions, nil
}

func (c *BridgeClient) GetQuote(ctx context.Context, symbol string) (venue.Quote, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/quotes/"+symbol, nil)
	if err != nil {
		if errors.Is(err, venue.ErrPositionNotFound) {
			return venue.Quote{}, fmt.Errorf("%w: %s", venue.ErrNoQuote, symbol)
		}
		return venue.Quote{}, err
	}
	var q venue.Quote
	if err := decode(resp, &q); err != nil {
		return venue.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if q.Bid <= 0 || q.Ask <= 0 {
		return venue.Quote{}, fmt.Errorf("%w: %s", venue.ErrNoQuote, symbol)
	}
	return q, nil
}

func (c *BridgeClient) GetAccountSnapshot(ctx context.Context) (venue.Account, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return venue.Account{}, err
	}
	var acct venue.Account
	if err := decode(resp, &acct); err != nil {
		return venue.Account{}, fmt.Errorf("decode account: %w", err)
	}
	return acct, nil
}
