package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/alerts"
	"github.com/cryptomonitor/tracker/internal/auth"
	"github.com/cryptomonitor/tracker/internal/format"
	"github.com/cryptomonitor/tracker/internal/history"
	"github.com/cryptomonitor/tracker/internal/market"
	"github.com/cryptomonitor/tracker/internal/portfolio"
	"github.com/cryptomonitor/tracker/internal/watchlist"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// marketPayload shapes a snapshot the way the home page always consumed
// it: per-coin price, change, volume and a display name, plus formatted
// strings for direct rendering.
func marketPayload(snap *market.Snapshot) gin.H {
	payload := gin.H{}
	for coin, q := range snap.Quotes {
		payload[coin] = gin.H{
			"usd":            q.PriceUSD.InexactFloat64(),
			"usd_24h_change": q.Change24h,
			"volume_24h":     q.Volume24h,
			"sentiment":      q.Sentiment,
			"name":           q.Name,
			"price_display":  format.Currency(q.PriceUSD.InexactFloat64()),
			"volume_display": format.Compact(q.Volume24h),
			"change_abs":     format.Abs(q.Change24h),
		}
	}
	return payload
}

func (s *Server) handleHome(c *gin.Context) {
	snap, err := s.market.Snapshot(c.Request.Context())
	if err != nil {
		s.log.Warn("home served with degraded market data", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"market_data":  marketPayload(snap),
		"is_data_live": snap.Live,
	})
}

func (s *Server) handleMarketDataAPI(c *gin.Context) {
	snap, err := s.market.Snapshot(c.Request.Context())
	if err != nil {
		s.log.Warn("market data api served with degraded data", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"market_data": marketPayload(snap),
		"sentiment":   s.news.MarketSentiment(c.Request.Context()),
	})
}

func (s *Server) handleLiveCharts(c *gin.Context) {
	snap, err := s.market.Snapshot(c.Request.Context())
	if err != nil {
		s.log.Warn("live charts served with degraded data", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"market_data":  marketPayload(snap),
		"is_data_live": snap.Live,
	})
}

func (s *Server) handleTechnical(c *gin.Context) {
	series, err := s.history.ChartSeries(c.Request.Context(), c.Query("coin"), seriesLimit(c))
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chart_data": series})
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")

	snap, err := s.market.Snapshot(c.Request.Context())
	if err != nil {
		s.log.Warn("search served with degraded data", zap.Error(err))
	}

	results := gin.H{}
	for coin, q := range snap.Search(query) {
		results[coin] = gin.H{
			"usd":            q.PriceUSD.InexactFloat64(),
			"usd_24h_change": q.Change24h,
			"volume_24h":     q.Volume24h,
			"name":           q.Name,
		}
	}

	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}

func (s *Server) handleNews(c *gin.Context) {
	articles, err := s.news.Latest(c.Request.Context())
	if err != nil {
		s.log.Warn("news unavailable", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"news_data": articles,
			"error":     "Failed to fetch news. Please try again later.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"news_data": articles})
}

func (s *Server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	snap, err := s.market.Snapshot(ctx)
	if err != nil {
		s.log.Warn("dashboard served with degraded market data", zap.Error(err))
	}

	summary, err := s.portfolio.Summarize(ctx, userID)
	if err != nil {
		s.serverError(c, err)
		return
	}

	breakdown, err := s.portfolio.Break(ctx, userID)
	if err != nil {
		s.serverError(c, err)
		return
	}

	empty, err := s.portfolio.Empty(ctx, userID)
	if err != nil {
		s.serverError(c, err)
		return
	}

	series, err := s.history.ChartSeries(ctx, history.DefaultChartCoin, history.DefaultSeriesLen)
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"market_data":      marketPayload(snap),
		"summary_data":     summary,
		"chart_data":       series,
		"portfolio_labels": breakdown.Labels,
		"portfolio_values": breakdown.Values,
		"portfolio_empty":  empty,
		"is_data_live":     snap.Live,
	})
}

func (s *Server) handlePortfolio(c *gin.Context) {
	views, err := s.portfolio.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.serverError(c, err)
		return
	}

	if views == nil {
		views = []portfolio.PositionView{}
	}

	c.JSON(http.StatusOK, gin.H{"portfolio": views})
}

type addPositionRequest struct {
	Cryptocurrency string `form:"cryptocurrency" json:"cryptocurrency"`
	Amount         string `form:"amount" json:"amount"`
	PurchasePrice  string `form:"purchase_price" json:"purchase_price"`
}

func (s *Server) handleAddToPortfolio(c *gin.Context) {
	var req addPositionRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required."})
		return
	}

	err := s.portfolio.Add(c.Request.Context(), currentUserID(c), req.Cryptocurrency, req.Amount, req.PurchasePrice)
	if err != nil {
		s.domainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Added " + req.Cryptocurrency + " to portfolio",
	})
}

func (s *Server) handleWatchlist(c *gin.Context) {
	views, err := s.watchlist.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"watchlist": views})
}

type addWatchRequest struct {
	Cryptocurrency string `form:"cryptocurrency" json:"cryptocurrency"`
}

func (s *Server) handleAddToWatchlist(c *gin.Context) {
	var req addWatchRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cryptocurrency is required."})
		return
	}

	err := s.watchlist.Add(c.Request.Context(), currentUserID(c), req.Cryptocurrency)
	if err != nil {
		s.domainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Added " + req.Cryptocurrency + " to watchlist",
	})
}

func (s *Server) handleAlerts(c *gin.Context) {
	views, err := s.alerts.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": views})
}

type addAlertRequest struct {
	Cryptocurrency string `form:"cryptocurrency" json:"cryptocurrency"`
	TargetPrice    string `form:"target_price" json:"target_price"`
	Condition      string `form:"condition" json:"condition"`
}

func (s *Server) handleAddAlert(c *gin.Context) {
	var req addAlertRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required."})
		return
	}

	err := s.alerts.Add(c.Request.Context(), currentUserID(c), req.Cryptocurrency, req.TargetPrice, req.Condition)
	if err != nil {
		s.domainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Alert set for " + req.Cryptocurrency,
	})
}

func (s *Server) handleAlertsAPI(c *gin.Context) {
	views, err := s.alerts.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": views})
}

type credentialsRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please correct the errors below."})
		return
	}

	_, err := s.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username already taken."})
			return
		}
		s.domainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully! Please log in.",
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
		return
	}

	user, err := s.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		s.serverError(c, err)
		return
	}

	cookie := s.sessions.Issue(user.ID)
	c.SetCookie(sessionCookie, cookie, int(s.cfg.SessionTTL.Seconds()), "/", "", !s.cfg.Debug, true)

	c.JSON(http.StatusOK, gin.H{"message": "Logged in successfully!"})
}

func (s *Server) handleLogout(c *gin.Context) {
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		s.sessions.Revoke(cookie)
	}

	c.SetCookie(sessionCookie, "", -1, "/", "", !s.cfg.Debug, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully!"})
}

func (s *Server) handleProfile(c *gin.Context) {
	user, err := s.users.ByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"created_at": user.CreatedAt.Format("2006-01-02 15:04:05"),
		},
	})
}

func (s *Server) handleSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settings": gin.H{
			"env":              s.cfg.Env,
			"market_cache_ttl": s.cfg.MarketCacheTTL.String(),
			"history_interval": s.cfg.HistoryInterval.String(),
			"alert_interval":   s.cfg.AlertInterval.String(),
		},
	})
}

// domainError maps validation failures to a 400 carrying the human
// message; anything else is a 500.
func (s *Server) domainError(c *gin.Context, err error) {
	if isValidation(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	s.serverError(c, err)
}

func (s *Server) serverError(c *gin.Context, err error) {
	s.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again later."})
}

func isValidation(err error) bool {
	return errors.Is(err, portfolio.ErrValidation) ||
		errors.Is(err, watchlist.ErrValidation) ||
		errors.Is(err, alerts.ErrValidation) ||
		errors.Is(err, auth.ErrValidation)
}

// validationMessage peels the human message off a wrapped validation
// sentinel: wrap puts the message first, the sentinel last.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 {
		return msg[:i]
	}
	return msg
}

func seriesLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return history.DefaultSeriesLen
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return history.DefaultSeriesLen
	}

	return n
}
