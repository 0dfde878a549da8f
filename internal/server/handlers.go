package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paper-trade-go/internal/account"
	"paper-trade-go/internal/ledger"
	"paper-trade-go/internal/session"
	"paper-trade-go/internal/validate"
)

// quoteTableSplit is the last index (inclusive) rendered in the first
// column of the quote table.
const quoteTableSplit = 8

// flashError maps a domain error to a flash message and redirect, a 404
// page, or the generic error page.
func (s *Server) flashError(c *gin.Context, err error, backTo string) {
	var fieldErr *validate.Error
	switch {
	case errors.As(err, &fieldErr):
		session.Flash(c.Writer, fieldErr.Message)
		c.Redirect(http.StatusFound, backTo)
	case errors.Is(err, account.ErrUsernameTaken):
		session.Flash(c.Writer, "Username already exists")
		c.Redirect(http.StatusFound, backTo)
	case errors.Is(err, account.ErrEmailTaken):
		session.Flash(c.Writer, "Email already exists")
		c.Redirect(http.StatusFound, backTo)
	case errors.Is(err, account.ErrBadCredentials):
		session.Flash(c.Writer, "Incorrect Email and/or Password")
		c.Redirect(http.StatusFound, backTo)
	case errors.Is(err, ledger.ErrOversell):
		session.Flash(c.Writer, "You cannot sell more shares than you own.")
		c.Redirect(http.StatusFound, backTo)
	case errors.Is(err, ledger.ErrStockNotFound),
		errors.Is(err, ledger.ErrPositionNotFound),
		errors.Is(err, account.ErrNotFound):
		c.HTML(http.StatusNotFound, "404.html", gin.H{})
	default:
		s.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.HTML(http.StatusInternalServerError, "500.html", gin.H{})
	}
}

// pageData assembles the fields every template expects.
func (s *Server) pageData(c *gin.Context) gin.H {
	data := gin.H{"User": s.currentUser(c)}
	if message, ok := session.TakeFlash(c.Writer, c.Request); ok {
		data["Flash"] = message
	}
	return data
}

// home renders the landing page: live quote for the configured home ticker
// plus the tradable stock list.
func (s *Server) home(c *gin.Context) {
	ctx := c.Request.Context()
	ticker := s.cfg.Trading.HomeTicker

	price, err := s.quotes.LivePrice(ctx, ticker)
	if err != nil {
		s.flashError(c, err, "/")
		return
	}
	table, err := s.quotes.QuoteTable(ctx, ticker)
	if err != nil {
		s.flashError(c, err, "/")
		return
	}
	status, err := s.quotes.MarketStatus(ctx)
	if err != nil {
		s.flashError(c, err, "/")
		return
	}
	stocks, err := s.ledger.Stocks()
	if err != nil {
		s.flashError(c, err, "/")
		return
	}

	split := quoteTableSplit + 1
	if split > len(table) {
		split = len(table)
	}

	data := s.pageData(c)
	data["Ticker"] = strings.ToUpper(ticker)
	data["Price"] = price
	data["MarketStatus"] = status
	data["QuoteFirst"] = table[:split]
	data["QuoteSecond"] = table[split:]
	data["Stocks"] = stocks
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) registerPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", s.pageData(c))
}

func (s *Server) register(c *gin.Context) {
	user, err := s.accounts.Register(
		c.PostForm("username"),
		c.PostForm("email"),
		c.PostForm("password"),
	)
	if err != nil {
		s.flashError(c, err, "/register")
		return
	}

	s.sessions.Issue(c.Writer, user.Username)
	session.Flash(c.Writer, "Registration Successful!")
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", s.pageData(c))
}

func (s *Server) login(c *gin.Context) {
	user, err := s.accounts.Login(c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		s.flashError(c, err, "/login")
		return
	}

	s.sessions.Issue(c.Writer, user.Username)
	session.Flash(c.Writer, "Welcome, "+user.Username)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) logout(c *gin.Context) {
	s.sessions.Clear(c.Writer)
	session.Flash(c.Writer, "You have been logged out")
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) profilePage(c *gin.Context) {
	view, err := s.accounts.Profile(s.currentUser(c))
	if err != nil {
		s.flashError(c, err, "/")
		return
	}

	data := s.pageData(c)
	data["Profile"] = view
	c.HTML(http.StatusOK, "profile.html", data)
}

func (s *Server) updateProfile(c *gin.Context) {
	current := s.currentUser(c)
	newUsername := c.PostForm("username")
	newEmail := c.PostForm("email")

	changed, err := s.accounts.UpdateProfile(current, newUsername, newEmail)
	if err != nil {
		s.flashError(c, err, "/profile")
		return
	}
	if !changed {
		session.Flash(c.Writer, "Nothing to update.")
		c.Redirect(http.StatusFound, "/profile")
		return
	}

	// The session is bound to the username, so re-issue it.
	s.sessions.Issue(c.Writer, strings.ToLower(newUsername))
	session.Flash(c.Writer, "Profile updated.")
	c.Redirect(http.StatusFound, "/profile")
}

// stockPage renders a stock's detail page with the live price and, for a
// logged-in user, the largest quantity their cash covers. The hint is
// advisory; the buy handler does not enforce it.
func (s *Server) stockPage(c *gin.Context) {
	ctx := c.Request.Context()
	ticker := c.Param("id")

	stock, err := s.ledger.Stock(ticker)
	if err != nil {
		s.flashError(c, err, "/")
		return
	}
	price, err := s.quotes.LivePrice(ctx, stock.Ticker)
	if err != nil {
		s.flashError(c, err, "/")
		return
	}
	change, err := s.quotes.CurrentChange(ctx, stock.Ticker)
	if err != nil {
		s.flashError(c, err, "/")
		return
	}
	status, err := s.quotes.MarketStatus(ctx)
	if err != nil {
		s.flashError(c, err, "/")
		return
	}

	data := s.pageData(c)
	data["Stock"] = stock
	data["Price"] = price
	data["Change"] = change
	data["MarketStatus"] = status

	if username := s.currentUser(c); username != "" {
		if view, err := s.accounts.Profile(username); err == nil {
			data["MaxAffordable"] = s.ledger.MaxAffordable(view.Cash, price)
		}
	}
	c.HTML(http.StatusOK, "stock.html", data)
}

func (s *Server) buy(c *gin.Context) {
	ticker := c.Param("id")
	backTo := "/stock/" + ticker

	result, err := s.ledger.Buy(c.Request.Context(), s.currentUser(c), ticker, c.PostForm("quantity"))
	if err != nil {
		s.flashError(c, err, backTo)
		return
	}

	session.Flash(c.Writer, "Bought "+strconv.Itoa(result.Quantity)+" share(s) of "+
		strings.ToUpper(result.Ticker)+" for $"+result.Total.StringFixed(2)+
		" (incl. $"+result.Fee.StringFixed(2)+" fee)")
	c.Redirect(http.StatusFound, "/portfolio")
}

func (s *Server) portfolio(c *gin.Context) {
	positions, err := s.ledger.Portfolio(s.currentUser(c))
	if err != nil {
		s.flashError(c, err, "/")
		return
	}

	data := s.pageData(c)
	data["Positions"] = positions
	c.HTML(http.StatusOK, "portfolio.html", data)
}

func (s *Server) sell(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.HTML(http.StatusNotFound, "404.html", gin.H{})
		return
	}

	result, err := s.ledger.Sell(c.Request.Context(), s.currentUser(c), uint(id), c.PostForm("quantity"))
	if err != nil {
		s.flashError(c, err, "/portfolio")
		return
	}

	session.Flash(c.Writer, "Sold "+strconv.Itoa(result.Quantity)+" share(s) of "+
		strings.ToUpper(result.Ticker)+" for $"+result.Total.StringFixed(2))
	c.Redirect(http.StatusFound, "/portfolio")
}
