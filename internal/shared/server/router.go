package server

import (
	"context"
	"database/sql"
	"log"

	"github.com/gin-gonic/gin"

	"sds-backend/internal/auth"
	"sds-backend/internal/crm"
	"sds-backend/internal/documents"
	"sds-backend/internal/health"
	"sds-backend/internal/search"
	"sds-backend/internal/shared/config"
	"sds-backend/internal/shared/metrics"
	"sds-backend/internal/shared/server/middleware"
	"sds-backend/internal/shared/storage/db"
	"sds-backend/internal/shared/storage/object"
	localstore "sds-backend/internal/shared/storage/object/local"
	s3store "sds-backend/internal/shared/storage/object/s3"
	"sds-backend/internal/users"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	// Dependencies
	store := newObjectStore(cfg)
	sqlDB := connectDatabase(cfg)

	crmClient := crm.New(crm.Config{
		BaseURL:       cfg.CRMURL,
		ClientID:      cfg.CRMClientID,
		ClientSecret:  cfg.CRMClientSecret,
		TenantID:      cfg.CRMTenantID,
		EmailField:    cfg.CRMEmailField,
		PasswordField: cfg.CRMPasswordField,
		RoleFields:    cfg.CRMRoleFields,
	})
	searchClient := search.New(search.Config{
		Endpoint: cfg.SearchEndpoint,
		APIKey:   cfg.SearchAPIKey,
		Index:    cfg.SearchIndex,
	})

	var docRepo documents.Repo
	var resetRepo auth.ResetTokenRepo
	if sqlDB != nil {
		docRepo = &documents.PGRepo{DB: sqlDB}
		resetRepo = &auth.PGResetRepo{DB: sqlDB}
	} else {
		docRepo = documents.NewMemoryRepo()
		resetRepo = auth.NewMemoryResetRepo()
	}

	docSvc := &documents.Service{
		Repo:             docRepo,
		Store:            store,
		Search:           searchClient,
		DownloadExpiry:   cfg.DownloadURLExpiry,
		ShareDefaultDays: cfg.ShareDefaultDays,
	}
	docHandler := documents.NewHandler(docSvc, cfg.MaxUploadBytes)

	authSvc := &auth.Service{
		CRM:            crmClient,
		Resets:         resetRepo,
		RoleFields:     cfg.CRMRoleFields,
		JWTTTL:         cfg.JWTTTL,
		AllowPlaintext: cfg.AllowPlaintext,
		WebURL:         cfg.WebURL,
	}
	authHandler := auth.NewHandler(authSvc)
	msAuthSvc := auth.NewMicrosoftService(cfg.MSClientID, cfg.MSClientSecret, cfg.MSTenantID, cfg.MSRedirectURL, cfg.UIRedirectURL, authSvc)

	usersHandler := users.NewHandler(&users.Service{CRM: crmClient, RoleFields: cfg.CRMRoleFields})
	healthHandler := health.NewHandler(health.NewService(crmClient))

	public := r.Group("/api")
	healthHandler.RegisterRoutes(public)
	authHandler.RegisterPublicRoutes(public)
	msAuthSvc.RegisterRoutes(public)
	public.GET("/metrics", metrics.Handler())

	protected := r.Group("/api", middleware.Auth())
	authHandler.RegisterProtectedRoutes(protected)
	docHandler.RegisterRoutes(protected)
	usersHandler.RegisterRoutes(protected)

	return r
}

// newObjectStore picks the blob backend from configuration. S3 failures in
// non-production environments fall back to the noop store so the API still
// boots.
func newObjectStore(cfg config.Config) object.ObjectStore {
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(context.Background(), cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatalf("s3 store init: %v", err)
			}
			log.Printf("s3 store init failed, falling back to noop store: %v", err)
			return object.NoopStore{}
		}
		return store
	case "local":
		return localstore.New(cfg.LocalStoreDir)
	default:
		return object.NoopStore{}
	}
}

// connectDatabase opens the pool and runs migrations. Outside production a
// missing or broken database degrades to in-memory repositories.
func connectDatabase(cfg config.Config) *sql.DB {
	if cfg.DatabaseURL == "" {
		if cfg.Env == "production" {
			log.Fatalf("DATABASE_URL is required in production")
		}
		return nil
	}

	ctx := context.Background()
	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.Env == "production" {
			log.Fatalf("database connect: %v", err)
		}
		log.Printf("failed to connect database, falling back to memory: %v", err)
		return nil
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		if cfg.Env == "production" {
			log.Fatalf("database migrate: %v", err)
		}
		log.Printf("failed to run migrations, falling back to memory: %v", err)
		_ = sqlDB.Close()
		return nil
	}
	return sqlDB
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
