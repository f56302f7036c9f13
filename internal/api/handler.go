package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trading-agent/internal/control"
	"trading-agent/internal/events"
	"trading-agent/internal/market"
	"trading-agent/internal/monitor"
	"trading-agent/internal/order"
	"trading-agent/internal/store"
)

// Server wires HTTP endpoints around the agent components.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	Control   *control.State
	Orders    *order.Executor
	Store     *store.Gateway
	Market    *market.Registry
	Metrics   *monitor.Metrics
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes static runtime facts reported by /status.
type SystemMeta struct {
	Mode            string
	Instance        string
	Symbol          string
	Policy          string
	MaxPositionUSD  float64
	MaxDailyLossPct float64
	Version         string
}

// Deps bundles what NewServer needs.
type Deps struct {
	Bus       *events.Bus
	Control   *control.State
	Orders    *order.Executor
	Store     *store.Gateway
	Market    *market.Registry
	Metrics   *monitor.Metrics
	JWTSecret string
	Meta      SystemMeta
}

func NewServer(d Deps) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(d.Metrics))
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       d.Bus,
		Control:   d.Control,
		Orders:    d.Orders,
		Store:     d.Store,
		Market:    d.Market,
		Metrics:   d.Metrics,
		JWTSecret: d.JWTSecret,
		Meta:      d.Meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)
	if s.Metrics != nil {
		s.Router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	api := s.Router.Group("")
	api.Use(TimeoutMiddleware(30 * time.Second))
	{
		api.GET("/status", s.getStatus)
		api.GET("/positions", s.getPositions)
		api.GET("/pnl", s.getPnL)

		protected := api.Group("")
		if s.JWTSecret != "" {
			protected.Use(AuthMiddleware(s.JWTSecret))
		}
		protected.POST("/trade", s.postTrade)
		protected.POST("/control", s.postControl)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
