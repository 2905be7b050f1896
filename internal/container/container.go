package container

import (
	"context"
	"fmt"

	"gocausal/adapters/memory"
	"gocausal/adapters/postgres"
	"gocausal/app"
	"gocausal/internal"
	"gocausal/internal/api"
	"gocausal/internal/config"
	"gocausal/ports"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	ModelRepo ports.ModelRepository

	// Services
	ImpactService *app.ImpactService
	ImpactHandler *api.ImpactHandler
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	return &Container{Config: cfg, Logger: logger}, nil
}

// InitWithDatabase wires the container on a PostgreSQL connection
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	// Test database connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.ModelRepo = postgres.NewModelRepository(db)
	c.initServices()

	c.Logger.Info("container initialized with database connection")
	return nil
}

// InitInMemory wires the container on the in-memory repository
func (c *Container) InitInMemory() {
	c.ModelRepo = memory.NewModelRepository()
	c.initServices()

	c.Logger.Warn("container initialized without database, models are kept in memory")
}

func (c *Container) initServices() {
	c.ImpactService = app.NewImpactService(c.ModelRepo, c.Config.Engine, c.Logger)
	c.ImpactHandler = api.NewImpactHandler(c.ImpactService)
}

// Router builds the gin engine serving the API
func (c *Container) Router() *gin.Engine {
	gin.SetMode(c.Config.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(c.Logger))
	c.ImpactHandler.RegisterRoutes(router)
	return router
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
