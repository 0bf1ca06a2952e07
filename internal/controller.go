package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stepline/stepline/internal/core"
	"github.com/stepline/stepline/internal/core/data"
	"github.com/stepline/stepline/internal/lobby"
)

// Controller is the main entrypoint for the server. It's responsible for
// initializing the shared resources (database and logging), defining the
// lobby server, and launching everything.
type Controller struct {
	Config *core.Config

	logger *logrus.Logger
	db     *gorm.DB
	wg     sync.WaitGroup

	servers []*frontend
}

func (c *Controller) Start(ctx context.Context) error {
	defer c.Shutdown()

	var err error
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	c.db, err = data.Initialize(c.Config.DatabaseURL(), c.Config.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	// Clear any stale presence left over from an unclean shutdown.
	if err := data.DisconnectAllUsers(c.db); err != nil {
		return fmt.Errorf("error resetting user presence: %w", err)
	}

	c.declareServers()
	c.run(ctx)
	return nil
}

// Set up the servers we want to run.
func (c *Controller) declareServers() {
	c.servers = []*frontend{
		{
			Address: c.buildAddress(c.Config.Server.Port),
			Backend: &lobby.Server{
				Name:   "LOBBY",
				Config: c.Config,
				Logger: c.logger,
				DB:     c.db,
			},
		},
	}
}

func (c *Controller) run(ctx context.Context) {
	// Failure to initialize one of the registered servers is terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.logger

		if err := server.Start(ctx, &c.wg); err != nil {
			c.logger.Errorf("error starting %s server: %v", server.Backend.Identifier(), err)
			return
		}
	}

	c.wg.Wait()
}

func (c *Controller) buildAddress(port int) string {
	return fmt.Sprintf("%s:%v", c.Config.Hostname, port)
}

func (c *Controller) Shutdown() {
	c.wg.Wait()
	if c.db != nil {
		data.Shutdown(c.db)
	}
}
