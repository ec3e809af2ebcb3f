// Package server assembles the foodgram HTTP stack: gin routes for every
// API package, docs, metrics and media, behind CORS and rate limiting.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/admin"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/config"
	"github.com/mikepea/foodgram/pkg/foodgram/importexport"
	"github.com/mikepea/foodgram/pkg/foodgram/ingredients"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
	"github.com/mikepea/foodgram/pkg/foodgram/recipes"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"github.com/mikepea/foodgram/pkg/foodgram/shopping"
	"github.com/mikepea/foodgram/pkg/foodgram/subscriptions"
	"github.com/mikepea/foodgram/pkg/foodgram/tags"
	"github.com/mikepea/foodgram/pkg/foodgram/users"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "github.com/mikepea/foodgram/api/swagger"
)

// maxImportBytes caps ingredient catalog uploads.
const maxImportBytes = 10 << 20

// Deps are the collaborators the server is built from.
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Storage media.Storage
}

// Server owns the gin engine and the http.Server in front of it.
type Server struct {
	engine  *gin.Engine
	handler http.Handler
	http    *http.Server
}

// New builds every handler once and registers its routes.
func New(deps Deps) *Server {
	cfg := deps.Config
	db := deps.DB

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(logging.RequestID(), logging.RequestLogger(), gin.Recovery(), metrics.Middleware())

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	r.GET("/health", health)
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if local, ok := deps.Storage.(*media.LocalStorage); ok {
		r.Static(mediaPrefix(cfg.Media.BaseURL), local.Dir())
	}

	favorites := relations.Favorites(db)
	cart := relations.ShoppingCart(db)
	subs := relations.Subscriptions(db)
	userPresenter := users.NewPresenter(subs)

	api := r.Group("/api", auth.OptionalAuth())
	{
		api.GET("/health", health)

		auth.NewHandler(db).RegisterRoutes(api.Group("/auth"))

		users.NewHandler(db, userPresenter).RegisterRoutes(api)
		subscriptions.NewHandler(subscriptions.NewService(db, subs), userPresenter).RegisterRoutes(api)

		tags.NewHandler(db).RegisterRoutes(api)
		ingredients.NewHandler(db).RegisterRoutes(api)

		recipeService := recipes.NewService(db, deps.Storage, cfg.Media.MaxBytes, favorites, cart)
		recipePresenter := recipes.NewPresenter(favorites, cart, userPresenter)
		recipes.NewHandler(recipeService, recipePresenter, favorites, cart).RegisterRoutes(api)
		shopping.NewHandler(shopping.NewBuilder(db)).RegisterRoutes(api)

		adminGroup := api.Group("/admin", auth.AuthMiddleware(), auth.RequireAdmin())
		admin.NewHandler(db, deps.Storage).RegisterRoutes(adminGroup)
		importexport.NewHandler(importexport.NewImporter(db), maxImportBytes).RegisterRoutes(adminGroup)
	}

	handler := wrap(r, cfg.HTTP)
	return &Server{
		engine:  r,
		handler: handler,
		http: &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Engine returns the underlying gin engine.
func (s *Server) Engine() *gin.Engine { return s.engine }

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	logging.Info().Str("addr", s.http.Addr).Msg("Starting foodgram server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// mediaPrefix returns the URL path local media is served under.
func mediaPrefix(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || strings.Trim(u.Path, "/") == "" {
		return "/media"
	}
	return "/" + strings.Trim(u.Path, "/")
}
