package bridge

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"signalbridge/src/connectors"
	"signalbridge/src/controller"
	"signalbridge/src/database"
	"signalbridge/src/handler"
	"signalbridge/src/interpreter"
	"signalbridge/src/lifecycle"
	"signalbridge/src/reconciliation"
	"signalbridge/src/repository"
	"signalbridge/src/risk"
	"signalbridge/src/server"
	"signalbridge/src/transport"
	"signalbridge/src/venue"
)

// Bridge runs the signal pipeline: transport in, lifecycle, reconciliation
// and the read surface.
type Bridge struct {
	Log *logrus.Entry
}

// NewVenue returns the live bridge client, or a paper venue quoting
// through it when DRY_RUN is set.
func NewVenue(cfg connectors.Config) venue.Venue {
	client := connectors.NewBridgeClient(cfg)
	if cfg.DryRun {
		logrus.Warn("DRY_RUN enabled, orders are simulated")
		return connectors.NewPaperVenue(cfg, client)
	}
	return client
}

func (b *Bridge) Start() error {
	config := GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		b.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	lifecycleConfig := lifecycle.GetConfig()
	v := NewVenue(connectors.GetConfig())

	gate, err := risk.NewGate(risk.GetConfig(), v)
	if err != nil {
		b.Log.WithError(err).Error("Invalid risk configuration")
		return err
	}
	gate.WithSymbolMapper(func(symbol string) string {
		return venue.ToBrokerSymbol(symbol, lifecycleConfig.SymbolSuffix)
	})

	manager := lifecycle.NewManager(lifecycleConfig, v, b.Log).
		WithGate(gate).
		WithStore(repository.NewTradeRepository())
	manager.Bus().Subscribe(lifecycle.LogHandler)
	manager.Bus().Subscribe(lifecycle.AuditHandler(repository.NewTradeEventRepository()))

	if err := manager.Load(ctx); err != nil {
		b.Log.WithError(err).Error("Failed to restore open trades")
		return err
	}

	vocab, err := interpreter.LoadVocabularyFile(config.VocabularyFile)
	if err != nil {
		b.Log.WithError(err).Error("Failed to load vocabulary")
		return err
	}

	signals := controller.NewSignalController(controller.GetConfig(), interpreter.New(vocab), manager).
		WithSignalLogs(repository.NewSignalLogRepository()).
		WithExceptions(repository.NewExceptionRepository())

	transportConfig := transport.GetConfig()
	if len(transportConfig.MonitoredChannels) == 0 {
		b.Log.Warn("MONITORED_CHANNELS is empty, accepting every channel")
	}
	dispatcher := transport.NewDispatcher(transport.NewFilter(transportConfig.MonitoredChannels), signals)

	var wg sync.WaitGroup
	errCh := make(chan error, 3)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				b.Log.WithError(err).WithField("worker", name).Error("Worker stopped")
				errCh <- err
				stop()
			}
		}()
	}

	loop := reconciliation.NewLoop(reconciliation.GetConfig(), v, manager)
	run("reconciliation", loop.Start)

	if config.EnableServer {
		router := server.NewRouter(server.Routes{
			Webhook:     transport.WebhookHandler(dispatcher, transportConfig.WebhookSecret),
			Trades:      handler.ListTradesHandler(manager.View()),
			Trade:       handler.GetTradeHandler(manager.View()),
			TradeEvents: handler.DefaultTradeEventsHandler(),
			History:     handler.DefaultSearchTradesHandler(),
		})
		serverConfig := server.GetConfig()
		run("server", func(ctx context.Context) error {
			return server.StartServer(ctx, serverConfig, router)
		})
	}

	if config.EnableRelay {
		relay := transport.NewRelayClient(transportConfig, dispatcher)
		run("relay", relay.Run)
	}

	b.Log.WithField("open_trades", manager.OpenCount()).Info("Signal bridge started")
	<-ctx.Done()
	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return err
	}
	b.Log.Info("Signal bridge stopped")
	return nil
}
