package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/bunnyq"
	"github.com/sksmith/stock-ledger/api"
	"github.com/sksmith/stock-ledger/config"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/bulk"
	"github.com/sksmith/stock-ledger/core/catalog"
	"github.com/sksmith/stock-ledger/core/inventory"
	"github.com/sksmith/stock-ledger/core/user"
	"github.com/sksmith/stock-ledger/db"
	"github.com/sksmith/stock-ledger/db/catalogrepo"
	"github.com/sksmith/stock-ledger/db/invrepo"
	"github.com/sksmith/stock-ledger/db/memrepo"
	"github.com/sksmith/stock-ledger/db/usrrepo"
	"github.com/sksmith/stock-ledger/queue"
)

type application struct {
	router       chi.Router
	engine       *inventory.Engine
	reservations *inventory.Coordinator
	users        user.Service
	pipeline     *bulk.Pipeline
	sweeper      *inventory.Sweeper
	consumer     *queue.StockUpdateConsumer

	closers []func(ctx context.Context) error
}

type repositories struct {
	stock    inventory.Repository
	products catalog.Repository
	users    user.Repository
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{}

	repos, err := app.configStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	q, bq := app.configQueue(cfg)

	log.Info().Msg("creating inventory services...")
	app.engine = inventory.NewEngine(repos.stock, repos.products, q)
	app.reservations = inventory.NewCoordinator(app.engine, cfg.Inventory.ReservationTtl)
	app.sweeper = inventory.NewSweeper(app.reservations, cfg.Inventory.SweepInterval)

	log.Info().Msg("creating user service...")
	app.users = user.NewService(repos.users)
	if err := ensureAdmin(ctx, app.users, cfg.Admin); err != nil {
		return nil, err
	}

	log.Info().Msg("creating bulk update pipeline...")
	app.pipeline = bulk.NewPipeline(app.engine, repos.products,
		bulk.WithQueue(q),
		bulk.WithPool(bulk.NewPool(cfg.Bulk.Workers, cfg.Bulk.QueueSize)))

	if bq != nil {
		app.consumer = queue.NewStockUpdateConsumer(bq,
			cfg.RabbitMQ.StockUpdate.Queue, cfg.RabbitMQ.StockUpdate.Dlt.Exchange, app.pipeline)
	}

	log.Info().Msg("configuring router...")
	app.router = api.ConfigureRouter(cfg, app.engine, app.reservations, app.users, app.pipeline)

	return app, nil
}

func (app *application) configStore(ctx context.Context, cfg *config.Config) (repositories, error) {
	if cfg.Db.InMemory {
		log.Warn().Msg("using the in memory store, nothing will survive a restart")
		store := memrepo.NewStore(memrepo.WithLockTimeout(cfg.Inventory.LockTimeout))
		return repositories{
			stock:    memrepo.NewInventoryRepo(store),
			products: memrepo.NewCatalogRepo(store),
			users:    memrepo.NewUserRepo(store),
		}, nil
	}

	pool, err := db.ConnectDb(ctx, cfg)
	if err != nil {
		return repositories{}, errors.WithMessage(err, "failed to connect to the database")
	}
	app.closers = append(app.closers, func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	return repositories{
		stock:    invrepo.NewPostgresRepo(pool, cfg.Inventory.LockTimeout),
		products: catalogrepo.NewPostgresRepo(pool, cfg.Db.CacheSize),
		users:    usrrepo.NewPostgresRepo(pool),
	}, nil
}

// configQueue returns the event publisher and, when the service talks to RabbitMQ, the connection the stock
// update consumer should use.
func (app *application) configQueue(cfg *config.Config) (inventory.Queue, *bunnyq.BunnyQ) {
	switch {
	case cfg.Queue.Kind == config.QueueKafka:
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("publishing to kafka...")
		kp := queue.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.StockTopic, cfg.Kafka.ReservationTopic)
		app.closers = append(app.closers, func(ctx context.Context) error { return kp.Close() })
		return kp, nil
	case cfg.RabbitMQ.Mock:
		log.Info().Msg("creating mock queue...")
		return queue.NewMockQueue(), nil
	default:
		log.Info().Msg("connecting to rabbitmq...")
		bq := rabbit(cfg)
		return queue.New(bq, cfg.RabbitMQ.Stock.Exchange, cfg.RabbitMQ.Reservation.Exchange), bq
	}
}

func (app *application) start(ctx context.Context) {
	go app.sweeper.Run(ctx)

	if app.consumer != nil {
		log.Info().Msg("consuming stock updates...")
		go app.consumer.Consume(ctx)
	}
}

func (app *application) close(ctx context.Context) error {
	var result *multierror.Error
	if app.pipeline != nil {
		if err := app.pipeline.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func ensureAdmin(ctx context.Context, users user.Service, cfg config.AdminConfig) error {
	if cfg.Password == "" {
		log.Warn().Msg("no admin password configured, skipping admin creation")
		return nil
	}

	_, err := users.Create(ctx, user.CreateUserRequest{Username: cfg.Username, IsAdmin: true, PlainTextPassword: cfg.Password})
	if errors.Is(err, core.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return errors.WithMessage(err, "failed to create admin user")
	}
	log.Info().Str("username", cfg.Username).Msg("created admin user")
	return nil
}

func rabbit(cfg *config.Config) *bunnyq.BunnyQ {
	osChannel := make(chan os.Signal, 1)
	signal.Notify(osChannel, syscall.SIGTERM)

	return bunnyq.New(context.Background(),
		bunnyq.Address{
			User: cfg.RabbitMQ.User,
			Pass: cfg.RabbitMQ.Pass,
			Host: cfg.RabbitMQ.Host,
			Port: cfg.RabbitMQ.Port,
		},
		osChannel,
		bunnyq.LogHandler(logger{}),
	)
}

type logger struct {
}

func (l logger) Log(_ context.Context, level bunnyq.LogLevel, msg string, data map[string]interface{}) {
	var evt *zerolog.Event
	switch level {
	case bunnyq.LogLevelTrace:
		evt = log.Trace()
	case bunnyq.LogLevelDebug:
		evt = log.Debug()
	case bunnyq.LogLevelInfo:
		evt = log.Info()
	case bunnyq.LogLevelWarn:
		evt = log.Warn()
	case bunnyq.LogLevelError:
		evt = log.Error()
	default:
		evt = log.Info()
	}

	for k, v := range data {
		evt.Interface(k, v)
	}

	evt.Msg(msg)
}
