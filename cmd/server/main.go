package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/api/handlers"
	"github.com/maheshrc27/crosspost/internal/api/middleware"
	"github.com/maheshrc27/crosspost/internal/bluesky"
	"github.com/maheshrc27/crosspost/internal/browser"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to prepare database schema: %v", err)
	}

	var store service.ObjectStore
	if cfg.R2.Configured() {
		r2Service, err := service.NewR2Service(ctx, cfg.R2)
		if err != nil {
			log.Printf("Screenshot archive disabled: %v", err)
		} else {
			store = r2Service
		}
	}

	var chrome browser.Browser
	if cfg.Twitter.Configured() {
		chrome, err = browser.Launch(browser.LaunchOptions{
			Bin:       cfg.Browser.Bin,
			Headless:  cfg.Browser.Headless,
			NoSandbox: cfg.Production,
		})
		if err != nil {
			log.Printf("Twitter disabled, browser failed to launch: %v", err)
			chrome = nil
		}
	}

	tweetRepo := repository.NewTweetRepository(db)
	blueskyPostRepo := repository.NewBlueskyPostRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	screenshotService := service.NewScreenshotService(cfg.Browser.ScreenshotPath, store)
	imageService := service.NewImageService(cfg.UploadDir)
	twitterSession := service.NewTwitterSessionManager(cfg.Twitter, chrome)
	twitterService := service.NewTwitterService(cfg.Twitter, chrome, twitterSession, tweetRepo, screenshotService)
	blueskyService := service.NewBlueskyService(cfg.Bluesky, bluesky.NewClient(cfg.Bluesky.Service), blueskyPostRepo, imageService)
	authService := service.NewAuthService(*cfg, sessionRepo)
	timelineService := service.NewTimelineService(tweetRepo, blueskyPostRepo, twitterService.PermalinkURL)

	//queue
	queueW := queue.NewQueue(twitterService, blueskyService)

	var resync service.Resyncer = queue.NewLocalDispatcher(queueW)
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		client := asynq.NewClient(redisConn)
		defer client.Close()
		resync = queue.NewAsynqDispatcher(client)

		go func() {
			server := asynq.NewServer(redisConn, asynq.Config{
				Concurrency: 2,
			})

			mux := asynq.NewServeMux()
			mux.HandleFunc(queue.TaskTypeSyncRecent, queueW.HandleSyncRecentTask)

			log.Println("Starting the Asynq server...")
			if err := server.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	compositionService := service.NewCompositionService(
		[]service.PostingBackend{twitterService, blueskyService},
		map[string]service.PostCache{
			models.PlatformTwitter: tweetRepo,
			models.PlatformBluesky: blueskyPostRepo,
		},
		resync,
		cfg.UploadDir,
	)

	go func() {
		if err := blueskyService.Login(ctx); err != nil {
			return
		}
		if blueskyService.Enabled() {
			resync.Resync(ctx, models.PlatformBluesky)
		}
	}()

	go func() {
		if err := twitterSession.Login(ctx); err != nil {
			log.Printf("Twitter login failed: %v", err)
			return
		}
		switch twitterSession.State() {
		case service.SessionLoggedIn:
			resync.Resync(ctx, models.PlatformTwitter)
		case service.SessionAwaitingConfirmationCode:
			log.Println("Twitter is waiting for a confirmation code")
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    cfg.MaxUploadSize,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.ServerOrigin,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg, authService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/sign-in", auth.SignIn)
	app.Get("/validate-oauth", auth.ValidateOAuth)
	app.Post("/sign-out", auth.SignOut)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(twitterSession, blueskyService)
	api.Get("/me", user.GetUserInfo)

	post := handlers.NewPostHandler(compositionService, timelineService, resync)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts", post.CreatePost)
	api.Post("/posts/delete", post.DeletePosts)
	api.Delete("/tweets/:tweetId", post.DeleteTweet)
	api.Post("/sync", post.Sync)

	twitter := handlers.NewTwitterHandler(twitterSession, twitterService, resync)
	api.Get("/twitter/confirmation-code", twitter.GetConfirmationCode)
	api.Post("/twitter/confirmation-code", twitter.InputConfirmationCode)
	api.Post("/twitter/screenshot", twitter.Screenshot)

	// cron jobs
	syncJob := job.NewSyncJob(queueW, twitterService, blueskyService)

	c := cron.New()
	if err := c.AddFunc(cfg.SyncSchedule, syncJob.SyncRecent); err != nil {
		log.Fatalf("Invalid SYNC_SCHEDULE %q: %v", cfg.SyncSchedule, err)
	}
	c.Start()

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ServerOrigin)

	gracefulShutdown(app, c, chrome, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, chrome browser.Browser, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	c.Stop()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	if chrome != nil {
		if err := chrome.Close(); err != nil {
			log.Printf("Failed to close browser: %v", err)
		}
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
