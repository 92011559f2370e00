// Package container wires the application together: database, stores,
// registry, engine, sinks and the HTTP server, with ordered startup and
// reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/crestline-erp/approvalflow/internal/application/access"
	"github.com/crestline-erp/approvalflow/internal/application/engine"
	"github.com/crestline-erp/approvalflow/internal/application/notify"
	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/application/registry"
	"github.com/crestline-erp/approvalflow/internal/config"
	"github.com/crestline-erp/approvalflow/internal/infrastructure/external/lark"
	"github.com/crestline-erp/approvalflow/internal/infrastructure/persistence/sqlite"
	"github.com/crestline-erp/approvalflow/internal/infrastructure/report"
	httpiface "github.com/crestline-erp/approvalflow/internal/interfaces/http"
	"github.com/crestline-erp/approvalflow/pkg/database"
	"github.com/crestline-erp/approvalflow/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - data
	db     *database.DB
	txMgr  *sqlite.DB
	stores *StoreBundle

	// Application
	registry *registry.Registry
	resolver *access.Resolver
	hub      *notify.Hub
	channel  *notify.Channel
	engine   engine.Engine

	// Interfaces
	reports *report.Generator
	server  *httpiface.Server

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// StoreBundle groups all persistence stores for convenient access.
type StoreBundle struct {
	Records       port.RecordStore
	Workflows     port.WorkflowStore
	Audit         port.AuditStore
	Notifications port.NotificationStore
	Assignments   port.AssignmentStore
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration. It does not
// initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations, stores
// 2. Registry and access resolver
// 3. Notification channel with its sinks
// 4. Approval engine
// 5. HTTP server (started by the caller via Serve)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	c.registry = registry.New(c.stores.Workflows)
	c.resolver = access.NewResolver(c.registry, c.stores.Assignments)
	c.logger.Info("Workflow registry initialized")

	c.initNotifications()
	c.logger.Info("Notification channel initialized")

	c.engine = engine.NewEngine(
		c.stores.Records,
		c.stores.Audit,
		c.registry,
		c.resolver,
		c.channel,
		c.txMgr,
		engine.WithLogger(c.appLogger()),
	)
	c.logger.Info("Approval engine initialized")

	c.reports = report.NewGenerator(c.stores.Records, c.stores.Audit, c.config.Report.SheetName, c.logger)

	c.server = httpiface.NewServer(httpiface.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
	}, c.engine, c.hub, c.reports, c.appLogger())

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Serve runs the HTTP server until ctx is cancelled.
func (c *Container) Serve() error {
	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}
	return c.server.Start(c.ctx)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
	}

	if c.hub != nil {
		c.hub.Close()
		c.logger.Info("Notification hub closed")
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.db != nil {
		if err := c.db.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	if c.engine != nil {
		status.Components["engine"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["engine"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	return status
}

func (c *Container) initDatabase() error {
	db, err := database.New(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}

	migrator := database.NewMigrator(db, c.logger)
	if err := migrator.RunMigrations(c.config.Database.MigrationsDir); err != nil {
		db.Close()
		return err
	}

	c.db = db
	c.txMgr = sqlite.NewDB(db.DB, c.logger)
	c.stores = &StoreBundle{
		Records:       sqlite.NewRecordStore(db.DB, c.logger),
		Workflows:     sqlite.NewWorkflowStore(db.DB, c.logger),
		Audit:         sqlite.NewAuditStore(db.DB, c.logger),
		Notifications: sqlite.NewNotificationStore(db.DB, c.logger),
		Assignments:   sqlite.NewAssignmentStore(db.DB, c.logger),
	}
	return nil
}

func (c *Container) initNotifications() {
	c.hub = notify.NewHub(c.appLogger())

	sinks := []port.EventSink{c.hub}
	if c.config.Lark.Enabled {
		sinks = append(sinks, lark.NewNotifier(lark.Config{
			AppID:      c.config.Lark.AppID,
			AppSecret:  c.config.Lark.AppSecret,
			APITimeout: c.config.Lark.APITimeout,
			RoleChats:  c.config.Lark.RoleChats,
		}, c.logger))
		c.logger.Info("Lark notifier enabled")
	}

	c.channel = notify.NewChannel(c.stores.Notifications, c.appLogger(), sinks...)
}

// appLogger adapts the zap logger to the narrow keysAndValues interface
// the application packages depend on.
func (c *Container) appLogger() utils.SugarAdapter {
	return utils.SugarAdapter{S: c.logger.Sugar()}
}

// Getters for accessing container components

// Engine returns the approval engine.
func (c *Container) Engine() engine.Engine {
	return c.engine
}

// Registry returns the workflow registry.
func (c *Container) Registry() *registry.Registry {
	return c.registry
}

// Hub returns the live notification hub.
func (c *Container) Hub() *notify.Hub {
	return c.hub
}

// Stores returns all persistence stores.
func (c *Container) Stores() *StoreBundle {
	return c.stores
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() port.TransactionManager {
	return c.txMgr
}

// Server returns the HTTP server.
func (c *Container) Server() *httpiface.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
