package route

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"cafemanager/access"
	"cafemanager/apperr"
	"cafemanager/auth"
	"cafemanager/cache"
	"cafemanager/config"
	"cafemanager/controller"
	"cafemanager/logger"
	"cafemanager/metrics"
	"cafemanager/service"
	"cafemanager/storage"
	"cafemanager/utils"
	"cafemanager/ws"
)

// Deps are the process-wide handles shared by every request.
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Cache   cache.MenuCache
	Disk    storage.Disk
	Hub     *ws.TableHub
	Tokens  *utils.TokenIssuer
}

func New(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		logger.Middleware(d.Logger),
		utils.Recovery(),
		d.Metrics.Middleware(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", logger.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	menu := service.NewMenuService(d.DB, d.Cache, d.Metrics, cfg.BatchConcurrency)
	orders := service.NewOrderService(d.DB, d.Hub)
	reports := service.NewReportService(d.DB)

	authCtl := auth.NewController(d.DB, d.Tokens)
	cafes := controller.NewCafeController(d.DB, d.Disk)
	menus := controller.NewMenuController(menu)
	staff := controller.NewStaffController(d.DB)
	tables := controller.NewTableController(d.DB, d.Hub)
	campaigns := controller.NewCampaignController(d.DB, reports)
	orderCtl := controller.NewOrderController(orders)
	reportCtl := controller.NewReportController(reports)

	guard := access.NewGuard(d.DB)
	member, manager := guard.Member(), guard.Manager()
	authenticated := utils.AuthMiddleware(d.DB, d.Tokens)

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authCtl.Register)
		authGroup.POST("/login", authCtl.Login)
		authGroup.POST("/refresh", authCtl.Refresh)
		authGroup.GET("/me", authenticated, authCtl.Me)
	}

	cafeGroup := api.Group("/cafes", authenticated)
	{
		cafeGroup.POST("", cafes.Create)
		cafeGroup.GET("", cafes.Get)
	}

	one := cafeGroup.Group("/:id")
	{
		one.PATCH("", manager, cafes.Update)
		one.POST("/logo", manager, cafes.UploadLogo)

		one.GET("/menu", member, menus.Menu)
		one.POST("/categories/save", manager, menus.SaveCategories)
		one.POST("/extras/save", manager, menus.SaveExtras)
		one.POST("/menu-items/save", manager, menus.SaveMenuItems)
		one.POST("/menu-items/import", manager, menus.ImportMenuItems)

		one.GET("/staff", manager, staff.List)
		one.POST("/staff", manager, staff.Invite)
		one.DELETE("/staff/:staffId", manager, staff.Remove)

		one.GET("/tables", member, tables.List)
		one.GET("/tables/ws", member, d.Hub.HandleWebSocket)
		one.POST("/tables", manager, tables.Create)
		one.PATCH("/tables/:tableId", member, tables.Update)
		one.DELETE("/tables/:tableId", manager, tables.Delete)

		one.GET("/campaigns", member, campaigns.List)
		one.POST("/campaigns", manager, campaigns.Create)
		one.PATCH("/campaigns/:campaignId", manager, campaigns.Update)
		one.DELETE("/campaigns/:campaignId", manager, campaigns.Delete)
		one.GET("/campaigns/:campaignId/stats", manager, campaigns.Stats)

		one.POST("/orders", member, orderCtl.Place)
		one.GET("/orders", member, orderCtl.List)
		one.PATCH("/orders/:orderId/status", member, orderCtl.UpdateStatus)

		one.GET("/reports/sales", manager, reportCtl.Sales)
		one.GET("/reports/sales/export", manager, reportCtl.Export)
	}

	if (cfg.StorageDisk == "" || cfg.StorageDisk == "local") && cfg.UploadURL != "" {
		router.Static(cfg.UploadURL, cfg.UploadDir)
	}
	serveFrontend(router, cfg.FrontendDir, d.Logger)
	return router
}

// serveFrontend serves the single-page app build; unknown /api paths get a
// JSON 404 instead of index.html.
func serveFrontend(router *gin.Engine, dir string, log zerolog.Logger) {
	index := filepath.Join(dir, "index.html")
	_, err := os.Stat(index)
	haveFrontend := err == nil
	if !haveFrontend {
		log.Warn().Str("dir", dir).Msg("frontend build not found, serving API only")
	} else {
		router.StaticFS("/static", http.Dir(filepath.Join(dir, "static")))
	}

	router.NoRoute(func(c *gin.Context) {
		if !haveFrontend || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			apperr.Respond(c, apperr.NotFound("Route not found"))
			return
		}
		c.File(index)
	})
}
