package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/config"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/handlers"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/middleware"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/repository"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	academyRepo := repository.NewAcademyRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	rateRepo := repository.NewRateRepository(db)
	earningRepo := repository.NewEarningRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)

	attendanceDefaults := models.AttendanceSettings{
		LateToleranceMinutes:     cfg.DefaultLateToleranceMinutes,
		MinimumAttendanceMinutes: cfg.DefaultMinimumAttendanceMinutes,
		PresentThresholdPercent:  cfg.DefaultPresentThresholdPercent,
	}

	subscriptionService := services.NewSubscriptionService(db, subscriptionRepo)
	attendanceService := services.NewAttendanceService(db, attendanceRepo, sessionRepo, academyRepo, attendanceDefaults)
	earningsService := services.NewEarningsService(db, earningRepo, rateRepo, sessionRepo)
	sessionService := services.NewSessionService(
		db,
		sessionRepo,
		subscriptionRepo,
		attendanceRepo,
		earningRepo,
		userRepo,
		attendanceService,
		subscriptionService,
		earningsService,
	)
	payoutService := services.NewPayoutService(db, payoutRepo, earningRepo)

	academyHandler := handlers.NewAcademyHandler(academyRepo, attendanceDefaults)
	authHandler := handlers.NewAuthHandler(academyRepo, userRepo, cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceService)
	earningHandler := handlers.NewEarningHandler(earningsService, rateRepo)
	payoutHandler := handlers.NewPayoutHandler(payoutService)

	api := app.Group("/api")

	api.Post("/academies", academyHandler.Create)

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	v1 := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	adminOnly := middleware.RoleRequired("admin")
	staff := middleware.RoleRequired("admin", "teacher")

	academy := v1.Group("/academy")
	academy.Get("/attendance-settings", academyHandler.GetAttendanceSettings)
	academy.Put("/attendance-settings", adminOnly, academyHandler.UpdateAttendanceSettings)

	sessions := v1.Group("/sessions")
	sessions.Post("", staff, sessionHandler.Schedule)
	sessions.Get("", sessionHandler.List)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Post("/:id/start", staff, sessionHandler.Start)
	sessions.Post("/:id/complete", staff, sessionHandler.Complete)
	sessions.Post("/:id/cancel", staff, sessionHandler.Cancel)

	sessions.Post("/:id/attendance/events", attendanceHandler.RecordEvent)
	sessions.Get("/:id/attendance", attendanceHandler.ListForSession)
	sessions.Put("/:id/attendance/override", staff, attendanceHandler.Override)
	sessions.Delete("/:id/attendance/override/:userId", staff, attendanceHandler.ClearOverride)

	subscriptions := v1.Group("/subscriptions")
	subscriptions.Post("", adminOnly, subscriptionHandler.Create)
	subscriptions.Get("/:id", subscriptionHandler.Get)
	subscriptions.Post("/:id/release", adminOnly, subscriptionHandler.Release)
	subscriptions.Post("/:id/pause", adminOnly, subscriptionHandler.Pause)
	subscriptions.Post("/:id/resume", adminOnly, subscriptionHandler.Resume)
	subscriptions.Post("/:id/cancel", adminOnly, subscriptionHandler.Cancel)
	v1.Get("/students/:studentId/subscriptions", subscriptionHandler.ListByStudent)

	rates := v1.Group("/rates", adminOnly)
	rates.Put("", earningHandler.UpsertRate)

	earnings := v1.Group("/earnings")
	earnings.Get("/:id", earningHandler.Get)
	earnings.Post("/:id/dispute", staff, earningHandler.Dispute)
	earnings.Post("/:id/resolve-dispute", adminOnly, earningHandler.ResolveDispute)
	earnings.Post("/:id/resolve-rate", adminOnly, earningHandler.ResolvePendingRate)

	payouts := v1.Group("/payouts")
	payouts.Post("", adminOnly, payoutHandler.Create)
	payouts.Get("/:id", payoutHandler.Get)
	payouts.Post("/:id/approve", adminOnly, payoutHandler.Approve)
	payouts.Post("/:id/reject", adminOnly, payoutHandler.Reject)
	payouts.Post("/:id/pay", adminOnly, payoutHandler.MarkPaid)
	v1.Get("/teachers/:teacherId/payouts", payoutHandler.ListByTeacher)
}
