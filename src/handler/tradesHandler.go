package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/lifecycle"
	"signalbridge/src/model"
	"signalbridge/src/repository"
)

type tradeViewer interface {
	Trades() []lifecycle.TradeView
	Open() []lifecycle.TradeView
	Trade(id string) (lifecycle.TradeView, bool)
}

type tradeSearcher interface {
	Search(ctx context.Context, options repository.TradeSearchOptions) ([]model.Trade, error)
}

type tradeEventFinder interface {
	FindByTradeID(ctx context.Context, tradeID string) ([]model.TradeEvent, error)
}

var knownStatuses = map[model.TradeStatus]bool{
	model.StatusWaiting:   true,
	model.StatusActive:    true,
	model.StatusTP1Hit:    true,
	model.StatusTP2Hit:    true,
	model.StatusTP3Hit:    true,
	model.StatusBreakeven: true,
	model.StatusSLHit:     true,
	model.StatusClosed:    true,
	model.StatusCancelled: true,
	model.StatusFailed:    true,
	model.StatusRejected:  true,
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// ListTradesHandler serves the live read model, newest first.
// open=true restricts the list to non-terminal trades.
func ListTradesHandler(view tradeViewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trades := view.Trades()
		if openParam := r.URL.Query().Get("open"); openParam != "" {
			open, err := strconv.ParseBool(openParam)
			if err != nil {
				http.Error(w, "invalid open", http.StatusBadRequest)
				return
			}
			if open {
				trades = view.Open()
			}
		}
		if trades == nil {
			trades = []lifecycle.TradeView{}
		}
		writeJSON(w, trades)
	}
}

// GetTradeHandler serves one trade from the read model.
func GetTradeHandler(view tradeViewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		trade, ok := view.Trade(id)
		if !ok {
			http.Error(w, "trade not found", http.StatusNotFound)
			return
		}
		writeJSON(w, trade)
	}
}

// SearchTradesHandler lists persisted trades, including ones closed before
// the last restart. Supports pagination and filters (status, symbol,
// createdFrom, createdTo).
func SearchTradesHandler(repo tradeSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status *model.TradeStatus
		if statusParam := r.URL.Query().Get("status"); statusParam != "" {
			s := model.TradeStatus(strings.ToLower(statusParam))
			if !knownStatuses[s] {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			status = &s
		}

		var symbol *string
		if symbolParam := r.URL.Query().Get("symbol"); symbolParam != "" {
			s := strings.ToUpper(symbolParam)
			symbol = &s
		}

		var createdFrom, createdTo *time.Time
		if createdFromParam := r.URL.Query().Get("createdFrom"); createdFromParam != "" {
			parsed, err := time.Parse(time.RFC3339, createdFromParam)
			if err != nil {
				http.Error(w, "invalid createdFrom", http.StatusBadRequest)
				return
			}
			createdFrom = &parsed
		}

		if createdToParam := r.URL.Query().Get("createdTo"); createdToParam != "" {
			parsed, err := time.Parse(time.RFC3339, createdToParam)
			if err != nil {
				http.Error(w, "invalid createdTo", http.StatusBadRequest)
				return
			}
			createdTo = &parsed
		}

		page := 1
		if pageParam := r.URL.Query().Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 20
		if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 || parsedSize > 500 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		offset := (page - 1) * pageSize

		trades, err := repo.Search(r.Context(), repository.TradeSearchOptions{
			Status:        status,
			Symbol:        symbol,
			CreatedAfter:  createdFrom,
			CreatedBefore: createdTo,
			Limit:         pageSize,
			Offset:        offset,
		})
		if err != nil {
			logger.WithError(err).Error("failed to search trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if trades == nil {
			trades = []model.Trade{}
		}
		writeJSON(w, trades)
	}
}

// DefaultSearchTradesHandler wires the handler to the production repository implementation.
func DefaultSearchTradesHandler() http.HandlerFunc {
	return SearchTradesHandler(repository.NewTradeRepository())
}

// TradeEventsHandler returns the audit trail of one trade in emission order.
func TradeEventsHandler(repo tradeEventFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		events, err := repo.FindByTradeID(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("trade_id", id).Error("failed to load trade events")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []model.TradeEvent{}
		}
		writeJSON(w, events)
	}
}

func DefaultTradeEventsHandler() http.HandlerFunc {
	return TradeEventsHandler(repository.NewTradeEventRepository())
}
