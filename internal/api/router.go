package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/unibazaar/marketplace/internal/api/handler"
	"github.com/unibazaar/marketplace/internal/api/middleware"
	"github.com/unibazaar/marketplace/internal/config"
	"github.com/unibazaar/marketplace/internal/repository"
	"github.com/unibazaar/marketplace/internal/service"
	"github.com/unibazaar/marketplace/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc    *service.AuthService
	ListingSvc *service.ListingService
	BidSvc     *service.BidService
	FeedSvc    *service.FeedService
	UserRepo   *repository.UserRepository
	Hub        *ws.Hub
	Cfg        *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		resp := gin.H{"status": "ok"}
		if deps.Hub != nil {
			resp["ws_clients"] = deps.Hub.ConnectedCount()
		}
		c.JSON(http.StatusOK, resp)
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	userH := handler.NewUserHandler(deps.AuthSvc, deps.UserRepo)
	listingH := handler.NewListingHandler(deps.ListingSvc)
	bidH := handler.NewBidHandler(deps.BidSvc)
	feedH := handler.NewFeedHandler(deps.FeedSvc)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for auth endpoints
	bidRL := middleware.RateLimitMiddleware(30)  // 30 req/s per IP for bid endpoints

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", userH.Register)
			auth.POST("/login", userH.Login)
			auth.POST("/refresh", userH.Refresh)
		}

		// ── Feed (public) ────────────────────────────────────────────────────
		api.GET("/feed", feedH.GetFeed)

		// ── Listings (reads public, bid lists public) ────────────────────────
		listings := api.Group("/listings")
		{
			listings.GET("/:id", listingH.GetByID)
			listings.GET("/:id/bids", bidH.GetListingBids)
			listings.GET("/:id/bids/high", bidH.GetCurrentHigh)
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			// Profile
			authed.GET("/me", userH.Me)

			// Listing lifecycle (seller side)
			myListings := authed.Group("/listings")
			{
				myListings.POST("", listingH.Create)
				myListings.GET("/mine", listingH.GetMine)
				myListings.PATCH("/:id", listingH.Update)
				myListings.POST("/:id/withdraw", listingH.Withdraw)
				myListings.POST("/:id/accept/:bidID", listingH.AcceptBid)
			}

			// Bids
			bids := authed.Group("/bids")
			bids.Use(bidRL)
			{
				bids.POST("", bidH.PlaceBid)
				bids.GET("/my", bidH.GetMyBids)
				bids.GET("/:id", bidH.GetBidByID)
				bids.POST("/:id/withdraw", bidH.WithdrawBid)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// Outside production all origins are allowed; in production only the origins
// listed in ALLOWED_ORIGINS.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool)
	for _, o := range strings.Split(cfg.Server.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
