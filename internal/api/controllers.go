package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trading-agent/internal/control"
	"trading-agent/internal/events"
	"trading-agent/internal/order"
	"trading-agent/internal/pnl"
	"trading-agent/internal/store"
	"trading-agent/pkg/i18n"
)

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":   code,
		"error":  msg,
		"detail": msg,
	})
}

type statusResponse struct {
	UptimeSeconds      float64        `json:"uptimeSeconds"`
	Mode               string         `json:"mode"`
	ConnectedExchanges []string       `json:"connectedExchanges"`
	LastError          *string        `json:"lastError"`
	Running            bool           `json:"running"`
	Killed             bool           `json:"killed"`
	Instance           string         `json:"instance,omitempty"`
	Symbol             string         `json:"symbol,omitempty"`
	PositionPolicy     string         `json:"positionPolicy,omitempty"`
	MaxPositionUSD     float64        `json:"maxPositionUSD"`
	MaxDailyLossPct    float64        `json:"maxDailyLossPct"`
	Store              string         `json:"store"`
	Version            string         `json:"version,omitempty"`
	Loop               control.Health `json:"loop"`
}

// getStatus reports uptime, mode, connections and the control flags.
func (s *Server) getStatus(c *gin.Context) {
	snap := s.Control.Snapshot()
	resp := statusResponse{
		UptimeSeconds:      time.Since(snap.StartTime).Seconds(),
		Mode:               s.Meta.Mode,
		ConnectedExchanges: []string{},
		Running:            snap.Running,
		Killed:             snap.Killed,
		Instance:           s.Meta.Instance,
		Symbol:             s.Meta.Symbol,
		PositionPolicy:     s.Meta.Policy,
		MaxPositionUSD:     s.Meta.MaxPositionUSD,
		MaxDailyLossPct:    s.Meta.MaxDailyLossPct,
		Store:              s.Store.BackendName(),
		Version:            s.Meta.Version,
		Loop:               snap.Loop,
	}
	if s.Market != nil {
		resp.ConnectedExchanges = append(resp.ConnectedExchanges, s.Market.Connected()...)
	}
	if snap.LastError != "" {
		resp.LastError = &snap.LastError
	}
	c.JSON(http.StatusOK, resp)
}

// getPositions lists open positions; an unavailable store yields [].
func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, s.Store.ListPositions(c.Request.Context()))
}

// getPnL reports realized P&L over the latest trades.
func (s *Server) getPnL(c *gin.Context) {
	trades, err := s.Store.RecentTrades(c.Request.Context(), pnl.Window)
	switch {
	case errors.Is(err, store.ErrNotConfigured):
		c.JSON(http.StatusOK, gin.H{"error": "store not configured", "realized": 0, "unrealized": 0})
		return
	case err != nil:
		log.Printf(i18n.Get("PnLQueryFailed"), err)
		c.JSON(http.StatusOK, gin.H{"error": "failed to query store", "realized": 0, "unrealized": 0})
		return
	}
	c.JSON(http.StatusOK, pnl.Realized(trades))
}

type tradeRequest struct {
	Symbol string  `json:"symbol" binding:"required"`
	Side   string  `json:"side" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

// postTrade submits a manual order. Refusals are 400 with a distinct code.
func (s *Server) postTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol, side and amount are required")
		return
	}

	res, err := s.Orders.Submit(c.Request.Context(), order.Request{
		Symbol: req.Symbol,
		Side:   req.Side,
		Amount:   req.Amount,
		Source:   "manual",
		Operator: CurrentOperator(c),
	})
	if err != nil {
		var rej *order.RejectionError
		if errors.As(err, &rej) {
			respondError(c, http.StatusBadRequest, rejectionCode(rej), rej.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

func rejectionCode(rej *order.RejectionError) string {
	switch {
	case errors.Is(rej, order.ErrKilled):
		return "TRADING_KILLED"
	case errors.Is(rej, order.ErrNoExchange):
		return "NO_EXCHANGE"
	case errors.Is(rej, order.ErrExposureLimit):
		return "EXPOSURE_LIMIT"
	default:
		return "INVALID_REQUEST"
	}
}

type controlRequest struct {
	Action string `json:"action" binding:"required"`
}

func operatorLabel(operator string) string {
	if operator == "" {
		return "anonymous"
	}
	return operator
}

// postControl applies pause, resume or kill.
func (s *Server) postControl(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "action is required")
		return
	}

	snap, err := s.Control.Apply(req.Action)
	if errors.Is(err, control.ErrUnknownAction) {
		respondError(c, http.StatusBadRequest, "UNKNOWN_ACTION", "Unknown action")
		return
	}

	operator := CurrentOperator(c)
	log.Printf(i18n.Get("ControlApplied"), req.Action, operatorLabel(operator), snap.Running, snap.Killed)
	s.Metrics.SetControl(snap.Running, snap.Killed)
	s.Bus.Publish(events.EventControlChange, events.ControlChange{
		Action:   req.Action,
		Running:  snap.Running,
		Killed:   snap.Killed,
		Operator: operator,
	})
	c.JSON(http.StatusOK, gin.H{"running": snap.Running, "killed": snap.Killed})
}
