package cmd

import (
	"database/sql"
	"net"

	"github.com/vibast-solutions/ms-go-gallery/app/controller"
	"github.com/vibast-solutions/ms-go-gallery/app/middleware"
	"github.com/vibast-solutions/ms-go-gallery/app/repository"
	"github.com/vibast-solutions/ms-go-gallery/app/service"
	"github.com/vibast-solutions/ms-go-gallery/app/storage"
	"github.com/vibast-solutions/ms-go-gallery/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP (Echo) server exposing the authentication and image endpoints.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	store, err := storage.NewMinioStore(
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.Bucket,
		cfg.Storage.PublicBaseURL,
		cfg.Storage.UseSSL,
		cfg.Storage.Timeout,
	)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to object storage")
	}

	userRepo := repository.NewUserRepository(db)
	imageRepo := repository.NewImageRepository(db)
	tokenService := service.NewTokenService(cfg)
	authService := service.NewAuthService(userRepo, tokenService, cfg)
	imageService := service.NewImageService(imageRepo, store, cfg.Upload)

	startHTTPServer(cfg, tokenService, authService, imageService)
}

func startHTTPServer(cfg *config.Config, tokenService *service.TokenService, authService *service.AuthService, imageService *service.ImageService) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.BodyLimit("32M"))

	authController := controller.NewAuthController(authService, cfg)
	imageController := controller.NewImageController(imageService)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	auth := e.Group("/auth")
	auth.POST("/register", authController.Register)
	auth.POST("/login", authController.Login)
	auth.POST("/forgot-password", authController.ForgotPassword)
	auth.POST("/reset-password", authController.ResetPassword)
	auth.POST("/refresh-token", authController.RefreshToken)

	authProtected := auth.Group("")
	authProtected.Use(authMiddleware.RequireAuth)
	authProtected.POST("/logout", authController.Logout)

	images := e.Group("/images")
	images.Use(authMiddleware.RequireAuth)
	images.GET("", imageController.List)
	images.GET("/stats", imageController.Stats)
	images.POST("/upload", imageController.Upload)
	images.POST("/bulk-upload", imageController.BulkUpload)
	images.PUT("/rearrange/order", imageController.Rearrange)
	images.POST("/bulk-delete", imageController.BulkDelete)
	images.PUT("/:id", imageController.Update)
	images.DELETE("/:id", imageController.Delete)

	httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}
