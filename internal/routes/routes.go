package routes

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduniche/eduniche-backend/internal/chain"
	"github.com/eduniche/eduniche-backend/internal/config"
	"github.com/eduniche/eduniche-backend/internal/handlers"
	"github.com/eduniche/eduniche-backend/internal/middleware"
	"github.com/eduniche/eduniche-backend/internal/repository"
	"github.com/eduniche/eduniche-backend/internal/services"
	groupws "github.com/eduniche/eduniche-backend/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) error {
	userRepo := repository.NewUserRepository(db)
	studentProfileRepo := repository.NewStudentProfileRepository(db)
	tutorProfileRepo := repository.NewTutorProfileRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	groupRepo := repository.NewStudyGroupRepository(db)
	resourceRepo := repository.NewResourceRepository(db)

	var storageService services.StorageService
	if cfg.SupabaseURL != "" && cfg.SupabaseBucket != "" && cfg.SupabaseServiceKey != "" {
		storageService = services.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}

	usdcToken := common.HexToAddress(cfg.USDCContract)
	var txReader chain.TxReader
	var wallet chain.Wallet
	if cfg.ChainEnabled() {
		client, err := chain.Dial(context.Background(), cfg.BaseRPCURL)
		if err != nil {
			return fmt.Errorf("connect base rpc: %w", err)
		}
		txReader = client
		if cfg.PlatformWalletKey != "" {
			signingWallet, err := chain.NewSigningWallet(client, cfg.PlatformWalletKey, usdcToken, big.NewInt(cfg.ChainID))
			if err != nil {
				return fmt.Errorf("load platform wallet: %w", err)
			}
			wallet = signingWallet
		}
	}

	authHandler := handlers.NewAuthHandler(
		db,
		userRepo,
		studentProfileRepo,
		tutorProfileRepo,
		cfg.JWTSecret,
	)
	onboardingHandler := handlers.NewOnboardingHandler(studentProfileRepo, tutorProfileRepo)
	discoveryService := services.NewDiscoveryService(tutorProfileRepo, studentProfileRepo)
	tutorDiscoveryHandler := handlers.NewTutorDiscoveryHandler(discoveryService, tutorProfileRepo)
	bookingService := services.NewBookingService(db, sessionRepo, paymentRepo, userRepo, tutorProfileRepo)
	paymentService := services.NewPaymentService(db, sessionRepo, paymentRepo, tutorProfileRepo, txReader, wallet, usdcToken)
	sessionHandler := handlers.NewSessionHandler(bookingService, paymentService)
	groupService := services.NewGroupService(db, groupRepo)
	groupHub := groupws.NewHub()
	go groupHub.Run()
	groupHandler := handlers.NewGroupHandler(groupService, groupHub)
	groupWSHandler := handlers.NewGroupWSHandler(groupService, groupHub, cfg.JWTSecret)
	resourceService := services.NewResourceService(resourceRepo, storageService)
	resourceHandler := handlers.NewResourceHandler(resourceService)

	if err := registerDocsRoutes(app, cfg); err != nil {
		return err
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/siwf", authHandler.SignIn)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	students := authProtected.Group("/students")
	students.Post("/onboarding", onboardingHandler.StudentOnboarding)

	tutors := authProtected.Group("/tutors")
	tutors.Get("", tutorDiscoveryHandler.ListTutors)
	tutors.Post("/onboarding", onboardingHandler.TutorOnboarding)
	tutors.Get("/recommended", tutorDiscoveryHandler.GetRecommendedTutors)
	tutors.Get("/:id", tutorDiscoveryHandler.GetTutorDetail)

	sessions := authProtected.Group("/sessions")
	sessions.Post("/book", sessionHandler.BookSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Put("/:id/status", sessionHandler.UpdateStatus)
	sessions.Post("/:id/pay", sessionHandler.PayForSession)
	sessions.Post("/:id/confirm", sessionHandler.ConfirmPayment)

	groups := authProtected.Group("/groups")
	groups.Post("", groupHandler.CreateGroup)
	groups.Get("", groupHandler.ListGroups)
	groups.Get("/:id", groupHandler.GetGroup)
	groups.Post("/:id/join", groupHandler.JoinGroup)
	groups.Delete("/:id/leave", groupHandler.LeaveGroup)
	groups.Get("/:id/messages", groupHandler.ListMessages)
	groups.Post("/:id/messages", groupHandler.PostMessage)

	resources := authProtected.Group("/resources")
	resources.Post("", resourceHandler.UploadResource)
	resources.Get("", resourceHandler.ListResources)
	resources.Get("/:id", resourceHandler.GetResource)
	resources.Get("/:id/download", resourceHandler.DownloadResource)

	api.Use("/ws/groups/:id", groupWSHandler.WebSocketAuth)
	api.Get("/ws/groups/:id", websocket.New(groupWSHandler.HandleWebSocket))

	return nil
}
