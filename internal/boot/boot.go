// Package boot is the shared startup path of every LogGas binary: load .env
// and config, configure the logger, open the clients a binary asks for and
// close them in reverse order on the way out.
package boot

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/db"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/migrate"
	"github.com/loggas/loggas-backend/pkg/pubsub"
	"github.com/loggas/loggas-backend/pkg/redis"
)

type closer struct {
	name  string
	close func() error
}

// Process owns a binary's config, logger and open clients.
type Process struct {
	Config *config.Config
	Logger *logger.Logger

	kind    string
	mu      sync.Mutex
	closers []closer
	exit    func(int)
}

// Start exits the process when config cannot be loaded.
func Start(kind string) *Process {
	p := newProcess(kind, logger.New(logger.Options{ServiceName: kind}))
	if err := godotenv.Load(); err != nil {
		p.Logger.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	p.Must("config", err)

	cfg.Service.Kind = kind
	p.Config = cfg
	p.Logger = logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	return p
}

func newProcess(kind string, logg *logger.Logger) *Process {
	return &Process{kind: kind, Logger: logg, exit: os.Exit}
}

// Must logs err against resource and exits after closing what is open.
func (p *Process) Must(resource string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(context.Background(), "failed to bootstrap "+resource, err)
	p.Exit(1)
}

func (p *Process) Exit(code int) {
	p.Close()
	p.exit(code)
}

// OnClose registers fn to run at Close. Later registrations run first.
func (p *Process) OnClose(name string, fn func() error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closers = append(p.closers, closer{name: name, close: fn})
}

// Close runs every registered closer once; failures are logged.
func (p *Process) Close() {
	p.mu.Lock()
	closers := p.closers
	p.closers = nil
	p.mu.Unlock()

	for _, c := range slices.Backward(closers) {
		if err := c.close(); err != nil {
			p.Logger.Error(p.Logger.WithField(context.Background(), "resource", c.name), "close failed", err)
		}
	}
}

// Context is canceled on SIGINT or SIGTERM and carries the env and service
// kind as log fields.
func (p *Process) Context() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{"serviceKind": p.kind}
	if p.Config != nil {
		fields["env"] = p.Config.App.Env
	}
	return p.Logger.WithFields(ctx, fields), stop
}

// Database opens the primary database and applies dev migrations when the
// environment asks for them.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	p.Must("database", err)
	p.OnClose("database", client.Close)
	p.Must("dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Logger, client))
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Must("redis", err)
	p.OnClose("redis", client.Close)
	return client
}

func (p *Process) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	p.Must("pubsub", err)
	p.OnClose("pubsub", client.Close)
	return client
}
