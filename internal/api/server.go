package api

import (
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"azlema-core/internal/events"
	"azlema-core/internal/live"
	"azlema-core/pkg/db"
)

// Controller is the live trader surface the dashboard drives.
type Controller interface {
	Start() error
	Stop() error
	Status() events.StatusPayload
}

// Server wires HTTP endpoints around the event bus and the trader.
type Server struct {
	Router            *gin.Engine
	Bus               *events.Bus
	DB                *db.Database
	Trader            Controller
	JWTSecret         string
	DashboardPassword string
	ReportPath        string
	RunID             string

	logMu   sync.Mutex
	logTail []events.LogPayload
}

const logTailSize = 100

func NewServer(bus *events.Bus, database *db.Database, trader Controller, jwtSecret, dashboardPassword, reportPath, runID string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:            r,
		Bus:               bus,
		DB:                database,
		Trader:            trader,
		JWTSecret:         jwtSecret,
		DashboardPassword: dashboardPassword,
		ReportPath:        reportPath,
		RunID:             runID,
	}
	s.routes()
	if bus != nil {
		go s.captureLogs()
	}
	return s
}

// captureLogs keeps the most recent log lines for the status endpoint.
func (s *Server) captureLogs() {
	stream, _ := s.Bus.Subscribe(events.TopicLog, logTailSize)
	for msg := range stream {
		entry, ok := msg.(events.LogPayload)
		if !ok {
			continue
		}
		s.logMu.Lock()
		s.logTail = append(s.logTail, entry)
		if len(s.logTail) > logTailSize {
			s.logTail = s.logTail[len(s.logTail)-logTailSize:]
		}
		s.logMu.Unlock()
	}
}

func (s *Server) routes() {
	s.Router.GET("/", s.index)
	s.Router.GET("/health", s.health)
	s.Router.GET("/ping", s.ping)
	s.Router.GET("/ws", s.websocket)
	s.Router.GET("/report", s.report)
	s.Router.GET("/status", s.status)
	s.Router.POST("/start", AuthMiddleware(s.JWTSecret), s.startTrader)
	s.Router.POST("/stop", AuthMiddleware(s.JWTSecret), s.stopTrader)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.status)
		api.GET("/trades", s.recentTrades)
		api.POST("/auth/login", s.login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/trader/start", s.startTrader)
			protected.POST("/trader/stop", s.stopTrader)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// status returns the runtime snapshot plus recent trades and the captured
// log tail. Without a trader (backtest mode) the snapshot section is null.
func (s *Server) status(c *gin.Context) {
	var snapshot any
	if s.Trader != nil {
		snapshot = s.Trader.Status()
	}

	var trades []db.TradeRow
	if s.DB != nil {
		trades, _ = s.DB.Queries().RecentTrades(c.Request.Context(), s.RunID, 20)
	}

	s.logMu.Lock()
	logs := make([]events.LogPayload, len(s.logTail))
	copy(logs, s.logTail)
	s.logMu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status": snapshot,
		"trades": trades,
		"logs":   logs,
	})
}

func (s *Server) recentTrades(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}
	trades, err := s.DB.Queries().RecentTrades(c.Request.Context(), s.RunID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": s.RunID, "trades": trades})
}

func (s *Server) startTrader(c *gin.Context) {
	if s.Trader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trader not configured"})
		return
	}
	if err := s.Trader.Start(); err != nil {
		if errors.Is(err, live.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) stopTrader(c *gin.Context) {
	if s.Trader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trader not configured"})
		return
	}
	if err := s.Trader.Stop(); err != nil {
		if errors.Is(err, live.ErrNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// report serves the last generated backtest report, if any.
func (s *Server) report(c *gin.Context) {
	if s.ReportPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report configured"})
		return
	}
	if _, err := os.Stat(s.ReportPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report generated yet"})
		return
	}
	c.File(s.ReportPath)
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
