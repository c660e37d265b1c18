package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moff.io/moff-connector/internal/aws"
	"moff.io/moff-connector/internal/bridge"
	"moff.io/moff-connector/internal/cache"
	"moff.io/moff-connector/internal/config"
	"moff.io/moff-connector/internal/connector"
	"moff.io/moff-connector/internal/database"
	"moff.io/moff-connector/internal/databus"
	"moff.io/moff-connector/internal/http"
	"moff.io/moff-connector/internal/starter"
	"moff.io/moff-connector/internal/store"
	"moff.io/moff-connector/internal/wallet"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

const (
	ledgerConnector   = "ledger"
	embeddedConnector = "embedded"
)

func main() {
	log.Infof("Starting app")
	startApp()
}

func startApp() {
	defer func() {
		if i := recover(); i != nil {
			log.Fatal(errors.ErrorfAndReport("%v", i))
		}
	}()
	config.Read()
	conf := config.Global
	log.SetLevelName(conf.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var clients *aws.Clients
	if conf.Aws.Region != "" {
		clients = aws.Init(ctx, conf.Aws.Region, conf.Aws.QRBucket)
	}
	if conf.Secrets() {
		if clients == nil {
			log.Fatal("ssm parameters configured without aws region")
		}
		if err := conf.Resolve(ctx, clients); err != nil {
			log.Fatal(err)
		}
	}
	if err := errors.NewSentryReporter(conf.SentryDSN); err != nil {
		log.Error(err)
	}
	errors.NewLarkReporter(conf.LarkWebhook, "moff-connector", time.Minute)

	var (
		opts    []wallet.Option
		limiter http.Limiter
	)
	if conf.RedisCredential.Address != "" {
		cache.Init(&conf.RedisCredential)
		defer cache.Close()
		opts = append(opts, wallet.WithSnapshots(cache.Snapshots{}))
		limiter = cache.NewActivateLimiter(conf.HTTP.ActivateRatePerMinute)
	}
	if conf.Postgres.Address != "" {
		database.InitConnectorPostgres(&conf.Postgres)
		defer database.Close()
		opts = append(opts, wallet.WithRecorder(database.Recorder{}))
	}
	if conf.KafkaServer != "" && conf.KafkaTopic != "" {
		databus.InitDataBus(conf.KafkaServer)
		defer databus.GetDataBus().Close()
		opts = append(opts, wallet.WithSinks(databus.NewStateSink(databus.GetDataBus(), conf.KafkaTopic)))
	}
	if clients != nil && conf.Aws.StateQueueURL != "" {
		opts = append(opts, wallet.WithSinks(clients.NewStateQueue(conf.Aws.StateQueueURL)))
	}

	manager := wallet.NewManager(opts...)
	registerConnectors(manager, conf, clients)

	server := http.NewServer(conf.HTTP.Addr, manager, limiter, conf.HTTP.RequestTimeout.Duration())
	if conf.Postgres.Address != "" {
		server.ServeActivations(database.ActivationRecord{})
	}
	elems := []starter.Startable{server, manager}
	if clients != nil && conf.Aws.CommandQueueURL != "" {
		if conf.RedisCredential.Address == "" {
			log.Fatal("command queue configured without redis")
		}
		elems = append(elems, clients.NewCommandWorker(conf.Aws.CommandQueueURL, cache.Dedup{}, manager.HandleCommand))
	}
	starter.Start(ctx, elems...)

	<-ctx.Done()
	log.Info("Shutting down...")
	starter.Stop(manager, server)
}

func registerConnectors(manager *wallet.Manager, conf *config.Configuration, clients *aws.Clients) {
	if conf.Ledger.Enabled {
		s := store.New(ledgerConnector)
		c, err := connector.NewLedgerConnector(ledgerConnector, s, connector.LedgerOptions{
			ChainID:                conf.Ledger.ChainID,
			URL:                    conf.Ledger.URL,
			PollingInterval:        conf.Ledger.PollingInterval.Duration(),
			RequestTimeout:         conf.Ledger.RequestTimeout.Duration(),
			AccountFetchingConfigs: conf.Ledger.AccountFetching,
			BaseDerivationPath:     conf.Ledger.BaseDerivationPath,
			MaxRequestsPerSecond:   conf.Ledger.MaxRequestsPerSecond,
			CacheSize:              conf.Ledger.CacheSize,
			OnError:                reportConnectorError(ledgerConnector),
		})
		if err != nil {
			log.Fatal(err)
		}
		manager.Register(ledgerConnector, c, s)
	}
	if conf.Embedded.Enabled {
		var host qrHost
		if clients != nil {
			host = clients
		}
		s := store.New(embeddedConnector)
		c, err := connector.NewEmbeddedConnector(embeddedConnector, s, connector.EmbeddedOptions{
			Loader:             bridge.Loader(),
			ConstructorOptions: bridge.Options{BridgeURL: conf.Embedded.BridgeURL, Meta: conf.Embedded.Constructor},
			InitOptions:        bridge.InitOptions{ChainID: conf.Embedded.Init.ChainID},
			LoginOptions: bridge.LoginOptions{
				DisplayQRCode: qrDisplay(conf.Embedded.Login, host),
				Timeout:       conf.Embedded.Login.Timeout.Duration(),
			},
			OnError: reportConnectorError(embeddedConnector),
		})
		if err != nil {
			log.Fatal(err)
		}
		manager.Register(embeddedConnector, c, s)
	}
}

func reportConnectorError(name string) func(error) {
	return func(err error) {
		log.Warn(errors.WrapfAndReport(err, "connector %s", name))
	}
}
