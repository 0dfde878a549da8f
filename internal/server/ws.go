package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// streamInterval is how often a price update is pushed per connection.
const streamInterval = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // pages and socket are served from the same origin
	},
}

// PriceUpdate is one pushed quote frame.
type PriceUpdate struct {
	Symbol    string    `json:"symbol"`
	Price     string    `json:"price"`
	Change    string    `json:"change"`
	Timestamp time.Time `json:"timestamp"`
}

// quoteStream pushes live price updates for one ticker over a websocket.
// The loop ends when the client goes away or a provider call fails.
func (s *Server) quoteStream(c *gin.Context) {
	ticker := c.Query("ticker")
	if ticker == "" {
		ticker = s.cfg.Trading.HomeTicker
	}
	if _, err := s.ledger.Stock(ticker); err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	push := time.NewTicker(streamInterval)
	defer push.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-push.C:
			price, err := s.quotes.LivePrice(ctx, ticker)
			if err != nil {
				s.logger.Warn("Quote stream fetch failed", zap.String("ticker", ticker), zap.Error(err))
				return
			}
			change, err := s.quotes.CurrentChange(ctx, ticker)
			if err != nil {
				s.logger.Warn("Quote stream fetch failed", zap.String("ticker", ticker), zap.Error(err))
				return
			}

			update := PriceUpdate{
				Symbol:    strings.ToUpper(ticker),
				Price:     price.StringFixed(2),
				Change:    change.StringFixed(2),
				Timestamp: time.Now(),
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		}
	}
}
