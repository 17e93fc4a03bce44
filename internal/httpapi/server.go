// Package httpapi exposes the tracker over HTTP as a JSON API plus
// collected static assets.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/alerts"
	"github.com/cryptomonitor/tracker/internal/auth"
	"github.com/cryptomonitor/tracker/internal/config"
	"github.com/cryptomonitor/tracker/internal/history"
	"github.com/cryptomonitor/tracker/internal/market"
	"github.com/cryptomonitor/tracker/internal/news"
	"github.com/cryptomonitor/tracker/internal/portfolio"
	"github.com/cryptomonitor/tracker/internal/watchlist"
)

const sessionCookie = "tracker_session"

type Server struct {
	cfg       *config.Config
	market    *market.Service
	news      *news.Service
	portfolio *portfolio.Service
	watchlist *watchlist.Service
	alerts    *alerts.Service
	history   *history.Service
	users     *auth.Users
	sessions  *auth.Sessions
	log       *zap.Logger
}

type Deps struct {
	Config    *config.Config
	Market    *market.Service
	News      *news.Service
	Portfolio *portfolio.Service
	Watchlist *watchlist.Service
	Alerts    *alerts.Service
	History   *history.Service
	Users     *auth.Users
	Sessions  *auth.Sessions
	Log       *zap.Logger
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:       d.Config,
		market:    d.Market,
		news:      d.News,
		portfolio: d.Portfolio,
		watchlist: d.Watchlist,
		alerts:    d.Alerts,
		history:   d.History,
		users:     d.Users,
		sessions:  d.Sessions,
		log:       d.Log,
	}
}

func (s *Server) Router() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())
	r.Use(s.allowedHosts())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/", s.handleHome)
	r.GET("/api/market-data/", s.handleMarketDataAPI)
	r.GET("/technical/", s.handleTechnical)
	r.GET("/search/", s.handleSearch)
	r.GET("/news/", s.handleNews)
	r.GET("/live-charts/", s.handleLiveCharts)

	r.POST("/register/", s.handleRegister)
	r.POST("/login/", s.handleLogin)
	r.POST("/logout/", s.handleLogout)

	authed := r.Group("/", s.requireAuth())
	authed.GET("/dashboard/", s.handleDashboard)
	authed.GET("/portfolio/", s.handlePortfolio)
	authed.POST("/portfolio/add/", s.handleAddToPortfolio)
	authed.GET("/watchlist/", s.handleWatchlist)
	authed.POST("/watchlist/add/", s.handleAddToWatchlist)
	authed.GET("/alerts/", s.handleAlerts)
	authed.POST("/alerts/add/", s.handleAddAlert)
	authed.GET("/api/alerts/", s.handleAlertsAPI)
	authed.GET("/profile/", s.handleProfile)
	authed.GET("/settings/", s.handleSettings)

	if s.cfg.StaticRoot != "" {
		r.Static("/static", s.cfg.StaticRoot)
	}

	return r
}
