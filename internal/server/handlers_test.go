package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"paper-trade-go/internal/account"
	"paper-trade-go/internal/config"
	"paper-trade-go/internal/database"
	"paper-trade-go/internal/ledger"
	"paper-trade-go/internal/models"
	"paper-trade-go/internal/quotes"
	"paper-trade-go/internal/session"
)

// fakeQuotes serves canned prices and a fixed quote table.
type fakeQuotes struct {
	prices map[string]decimal.Decimal
}

func (f *fakeQuotes) LivePrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	price, ok := f.prices[ticker]
	if !ok {
		return decimal.Zero, quotes.ErrUnknownTicker
	}
	return price, nil
}

func (f *fakeQuotes) PreviousClose(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return f.LivePrice(ctx, ticker)
}

func (f *fakeQuotes) CurrentChange(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromFloat(1.25), nil
}

func (f *fakeQuotes) QuoteTable(context.Context, string) ([]quotes.Field, error) {
	table := make([]quotes.Field, 17)
	for i := range table {
		table[i] = quotes.Field{Label: fmt.Sprintf("Row %d", i), Value: fmt.Sprintf("value-%d", i)}
	}
	return table, nil
}

func (f *fakeQuotes) MarketStatus(context.Context) (quotes.Status, error) {
	return quotes.StatusOpen, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:  config.Server{Port: 0},
		Session: config.Session{Secret: "test-secret", CookieName: "session"},
		Trading: config.Trading{
			StartingCash: 10000,
			FeeFlat:      0.50,
			FeeRate:      0.003,
			HouseAccount: "admin",
			HomeTicker:   "uber",
		},
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, cfg))

	logger := zap.NewNop()
	provider := &fakeQuotes{prices: map[string]decimal.Decimal{
		"uber": decimal.NewFromInt(100),
		"aapl": decimal.NewFromInt(200),
	}}
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.CookieName)
	accounts := account.NewService(logger, db, &cfg.Trading)
	trades := ledger.NewService(logger, db, provider, &cfg.Trading)

	srv := New(logger, cfg, sessions, accounts, trades, provider)
	return srv.Router("../../web/templates/*.html"), db, sessions
}

func postForm(router *gin.Engine, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// registerUser registers through the real handler and returns the session
// cookie it issued.
func registerUser(t *testing.T, router *gin.Engine, username string) []*http.Cookie {
	t.Helper()
	rec := postForm(router, "/register", url.Values{
		"username": {username},
		"email":    {username + "@example.com"},
		"password": {"s3cret!"},
	}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	var cookies []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			cookies = append(cookies, c)
		}
	}
	require.Len(t, cookies, 1)
	return cookies
}

func flashValue(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "flash" && c.Value != "" {
			value, err := url.QueryUnescape(c.Value)
			require.NoError(t, err)
			return value
		}
	}
	return ""
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, path := range []string{"/profile", "/portfolio"} {
		rec := get(router, path, nil)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}

	rec := postForm(router, "/stock/uber", url.Values{"quantity": {"1"}}, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestTamperedSessionRejected(t *testing.T) {
	router, _, _ := newTestRouter(t)

	cookie := &http.Cookie{Name: "session", Value: "admin|deadbeef"}
	rec := get(router, "/portfolio", []*http.Cookie{cookie})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRegisterAndDuplicate(t *testing.T) {
	router, db, sessions := newTestRouter(t)

	cookies := registerUser(t, router, "traderone")

	// The issued cookie verifies against the manager.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	username, ok := sessions.Current(req)
	assert.True(t, ok)
	assert.Equal(t, "traderone", username)

	var stored models.User
	require.NoError(t, db.Where("username = ?", "traderone").First(&stored).Error)
	assert.True(t, stored.Cash.Equal(decimal.NewFromInt(10000)))

	// Same username, different case: conflict, back to the form.
	rec := postForm(router, "/register", url.Values{
		"username": {"TraderOne"},
		"email":    {"other@example.com"},
		"password": {"s3cret!"},
	}, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/register", rec.Header().Get("Location"))
	assert.Equal(t, "Username already exists", flashValue(t, rec))
}

func TestRegisterInvalidUsername(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := postForm(router, "/register", url.Values{
		"username": {"ab"},
		"email":    {"trader@example.com"},
		"password": {"s3cret!"},
	}, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/register", rec.Header().Get("Location"))
	assert.Contains(t, flashValue(t, rec), "Username is not valid")
}

func TestLoginWrongCredentials(t *testing.T) {
	router, _, _ := newTestRouter(t)
	registerUser(t, router, "traderone")

	wrongPw := postForm(router, "/login", url.Values{
		"email":    {"traderone@example.com"},
		"password": {"wrong!!"},
	}, nil)
	unknown := postForm(router, "/login", url.Values{
		"email":    {"nobody@example.com"},
		"password": {"s3cret!"},
	}, nil)

	for _, rec := range []*httptest.ResponseRecorder{wrongPw, unknown} {
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.Equal(t, "Incorrect Email and/or Password", flashValue(t, rec))
	}
}

func TestLogout(t *testing.T) {
	router, _, _ := newTestRouter(t)
	cookies := registerUser(t, router, "traderone")

	rec := get(router, "/logout", cookies)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestHomePage(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := get(router, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "UBER")
	assert.Contains(t, body, "100.00")
	assert.Contains(t, body, "OPEN")
	// All 17 quote rows render across the two columns.
	assert.Contains(t, body, "Row 0")
	assert.Contains(t, body, "Row 8")
	assert.Contains(t, body, "Row 9")
	assert.Contains(t, body, "Row 16")
	// Seeded stock list links through to the stock pages.
	assert.Contains(t, body, "/stock/aapl")
}

func TestStockPageNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := get(router, "/stock/nosuch", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuySellFlow(t *testing.T) {
	router, db, _ := newTestRouter(t)
	cookies := registerUser(t, router, "traderone")

	rec := postForm(router, "/stock/uber", url.Values{"quantity": {"10"}}, cookies)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/portfolio", rec.Header().Get("Location"))
	assert.Contains(t, flashValue(t, rec), "Bought 10 share(s) of UBER")

	var pos models.Position
	require.NoError(t, db.Where("owner = ? AND ticker = ?", "traderone", "uber").First(&pos).Error)
	assert.Equal(t, 10, pos.Amount)

	page := get(router, "/portfolio", cookies)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Uber Technologies")

	rec = postForm(router, fmt.Sprintf("/sell/%d", pos.ID), url.Values{"quantity": {"10"}}, cookies)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/portfolio", rec.Header().Get("Location"))

	var count int64
	require.NoError(t, db.Model(&models.Position{}).Where("owner = ?", "traderone").Count(&count).Error)
	assert.Zero(t, count)
}

func TestBuyInvalidQuantityRedirectsBack(t *testing.T) {
	router, db, _ := newTestRouter(t)
	cookies := registerUser(t, router, "traderone")

	rec := postForm(router, "/stock/uber", url.Values{"quantity": {"10001"}}, cookies)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/stock/uber", rec.Header().Get("Location"))

	var trader models.User
	require.NoError(t, db.Where("username = ?", "traderone").First(&trader).Error)
	assert.True(t, trader.Cash.Equal(decimal.NewFromInt(10000)))
}

func TestSellOversellFlash(t *testing.T) {
	router, db, _ := newTestRouter(t)
	cookies := registerUser(t, router, "traderone")

	rec := postForm(router, "/stock/uber", url.Values{"quantity": {"5"}}, cookies)
	require.Equal(t, http.StatusFound, rec.Code)

	var pos models.Position
	require.NoError(t, db.Where("owner = ?", "traderone").First(&pos).Error)

	rec = postForm(router, fmt.Sprintf("/sell/%d", pos.ID), url.Values{"quantity": {"6"}}, cookies)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/portfolio", rec.Header().Get("Location"))
	assert.Contains(t, flashValue(t, rec), "more shares than you own")
}

func TestProfilePageAndEdit(t *testing.T) {
	router, _, sessions := newTestRouter(t)
	cookies := registerUser(t, router, "traderone")

	page := get(router, "/profile", cookies)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "traderone@example.com")
	assert.Contains(t, page.Body.String(), "10000.00")

	rec := postForm(router, "/profile", url.Values{
		"username": {"renamedone"},
		"email":    {"renamed@example.com"},
	}, cookies)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/profile", rec.Header().Get("Location"))

	// The session follows the rename.
	var renewed *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" && c.Value != "" {
			renewed = c
		}
	}
	require.NotNil(t, renewed)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(renewed)
	username, ok := sessions.Current(req)
	assert.True(t, ok)
	assert.Equal(t, "renamedone", username)
}

func TestUnknownRouteRenders404(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := get(router, "/no/such/page", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")
}
