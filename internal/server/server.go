// Package server wires the HTTP surface: server-rendered pages, the signed
// session, flash messages and the websocket quote stream.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paper-trade-go/internal/account"
	"paper-trade-go/internal/config"
	"paper-trade-go/internal/ledger"
	"paper-trade-go/internal/quotes"
	"paper-trade-go/internal/session"
)

// Server holds the handler dependencies.
type Server struct {
	logger   *zap.Logger
	cfg      *config.Config
	sessions *session.Manager
	accounts *account.Service
	ledger   *ledger.Service
	quotes   quotes.Provider
}

// New creates the server.
func New(logger *zap.Logger, cfg *config.Config, sessions *session.Manager,
	accounts *account.Service, ldg *ledger.Service, provider quotes.Provider) *Server {
	return &Server{
		logger:   logger,
		cfg:      cfg,
		sessions: sessions,
		accounts: accounts,
		ledger:   ldg,
		quotes:   provider,
	}
}

// Router builds the gin engine. templateGlob points at the HTML templates,
// e.g. "web/templates/*.html".
func (s *Server) Router(templateGlob string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())
	router.LoadHTMLGlob(templateGlob)

	router.GET("/", s.home)
	router.GET("/register", s.registerPage)
	router.POST("/register", s.register)
	router.GET("/login", s.loginPage)
	router.POST("/login", s.login)
	router.GET("/logout", s.logout)
	router.GET("/stock/:id", s.stockPage)
	router.GET("/ws/quotes", s.quoteStream)

	authed := router.Group("/", s.requireUser())
	authed.GET("/profile", s.profilePage)
	authed.POST("/profile", s.updateProfile)
	authed.POST("/stock/:id", s.buy)
	authed.GET("/portfolio", s.portfolio)
	authed.POST("/sell/:id", s.sell)

	router.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "404.html", gin.H{})
	})

	return router
}

// Run starts the HTTP server on the configured port.
func (s *Server) Run(templateGlob string) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.logger.Info("Starting web server", zap.String("address", addr))
	return s.Router(templateGlob).Run(addr)
}

// requestLog logs each request the way the rest of the app logs: zap.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// requireUser redirects to the login page when the session cookie is absent
// or fails verification.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := s.sessions.Current(c.Request)
		if !ok {
			session.Flash(c.Writer, "Please log in first.")
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Set("username", username)
		c.Next()
	}
}

// currentUser returns the session identity, empty when unauthenticated.
func (s *Server) currentUser(c *gin.Context) string {
	if username, exists := c.Get("username"); exists {
		return username.(string)
	}
	username, _ := s.sessions.Current(c.Request)
	return username
}
