package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GPTx-global/flightsurety/oracle/client"
	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/health"
	"github.com/GPTx-global/flightsurety/oracle/log"
	"github.com/GPTx-global/flightsurety/oracle/registry"
	"github.com/GPTx-global/flightsurety/oracle/scheduler"
	"github.com/GPTx-global/flightsurety/oracle/submitter"
	"github.com/GPTx-global/flightsurety/oracle/subscribe"
	"github.com/GPTx-global/flightsurety/oracle/telemetry"
)

const (
	healthInterval  = 30 * time.Second
	drainTimeout    = 15 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Daemon runs the oracle pool of one network: it registers the pool, then
// answers every OracleRequest its oracles are eligible for.
type Daemon struct {
	cfg    *config.Config
	client *client.Client

	telemetry *telemetry.Telemetry
	checker   *health.HealthChecker
	hub       *health.Hub
	server    *health.Server

	pool             *registry.Pool
	subscribeManager *subscribe.SubscribeManager
	scheduler        *scheduler.Scheduler
	submitter        *submitter.Submitter

	ctx    context.Context
	cancel context.CancelFunc
}

// New derives the wallet and dials the configured network over websocket.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	network, err := cfg.Network(cfg.Oracle.Network)
	if err != nil {
		return nil, err
	}

	accounts, err := client.NewAccounts(cfg.Key.Mnemonic, cfg.Key.Accounts)
	if err != nil {
		return nil, err
	}

	clt, err := client.Dial(ctx, network, accounts, client.Options{Websocket: true, GasLimit: cfg.Oracle.GasLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return NewWithClient(ctx, cfg, clt)
}

// NewWithClient builds the daemon around an existing client.
func NewWithClient(ctx context.Context, cfg *config.Config, clt *client.Client) (*Daemon, error) {
	tm, err := telemetry.New(10*time.Second, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		client:    clt,
		telemetry: tm,
		checker:   health.NewHealthChecker(healthInterval),
		hub:       health.NewHub(cfg.Server.CORSOrigins),
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.server = health.NewServer(cfg.Server, d.checker, d.telemetry, d.hub)
	d.subscribeManager = subscribe.NewSubscribeManager(clt.App(), cfg.Oracle.QueueSize, nil)

	d.checker.AddCheck(health.NewFuncCheck("rpc", clt.Ping))
	d.checker.AddCheck(health.NewFuncCheck("subscription", d.checkSubscription))

	return d, nil
}

// Start serves the API, registers the oracle pool and subscribes to requests
// from the current head. It returns once the coordinator is running.
func (d *Daemon) Start() error {
	if err := d.server.Start(); err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}
	go d.checker.Start(d.ctx)

	app := d.client.App()
	owner, err := d.client.Accounts().At(0)
	if err != nil {
		return err
	}
	if err := app.RequireIsOperational(d.ctx, owner); err != nil {
		log.Warnf("app contract reports not operational: %v", err)
	}

	oracles, err := d.client.Accounts().Range(d.cfg.Oracle.FirstAccount, d.cfg.Oracle.PoolSize)
	if err != nil {
		return err
	}

	d.pool, err = registry.New(app, d.cfg.Oracle.Concurrency, d.telemetry).
		RegisterAll(d.ctx, oracles, d.cfg.Oracle.PoolSize)
	if err != nil {
		return fmt.Errorf("failed to register oracles: %w", err)
	}
	if d.pool.Len() == 0 {
		return errors.New("no oracle could be registered")
	}

	policy, err := scheduler.PolicyFromConfig(d.cfg.Oracle)
	if err != nil {
		return err
	}

	d.scheduler = scheduler.New(d.pool, policy, d.cfg.Workers(), d.cfg.Oracle.QueueSize, d.telemetry, d.hub)
	d.submitter = submitter.New(app, d.cfg.Oracle.Concurrency, d.telemetry, d.hub)

	if err := d.subscribeManager.Subscribe(d.ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	d.scheduler.Start(d.ctx, d.subscribeManager.Requests())
	d.submitter.Start(d.ctx, d.scheduler.Responses())

	log.Infof("oracle daemon running with %d oracles", d.pool.Len())
	return nil
}

// checkSubscription publishes how far the subscription got before reporting
// whether it is still alive.
func (d *Daemon) checkSubscription(ctx context.Context) error {
	d.telemetry.SetGauge(telemetry.KeyLastBlock, float32(d.subscribeManager.LastBlock()))
	if last := d.subscribeManager.LastEvent(); !last.IsZero() {
		d.telemetry.SetGauge(telemetry.KeyRequestAge, float32(time.Since(last).Seconds()))
	}

	return d.subscribeManager.Healthy(ctx)
}

func (d *Daemon) Pool() *registry.Pool {
	return d.pool
}

// Stop ends the subscription, lets queued responses drain for a bounded
// time, then cancels whatever is still in flight.
func (d *Daemon) Stop() {
	d.subscribeManager.Close()

	if d.submitter != nil {
		drained := make(chan struct{})
		go func() {
			d.submitter.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-time.After(drainTimeout):
			log.Warnf("pending responses abandoned after %s", drainTimeout)
		}
	}

	d.cancel()
	if d.scheduler != nil {
		d.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		log.Errorf("failed to shut down api server: %v", err)
	}

	d.client.Close()
	log.Info("oracle daemon stopped")
}
