package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"starkshield/internal/calldata"
	"starkshield/internal/calldata/garaga"
	"starkshield/internal/chain"
	"starkshield/internal/chain/rpc"
	"starkshield/internal/credential"
	"starkshield/internal/events"
	"starkshield/internal/history"
	"starkshield/internal/nullifier"
	"starkshield/internal/orchestrator"
	"starkshield/internal/pipeline"
	"starkshield/internal/platform/config"
	"starkshield/internal/platform/kafka/producer"
	"starkshield/internal/platform/metrics"
	platformredis "starkshield/internal/platform/redis"
	"starkshield/internal/platform/tracer"
	"starkshield/internal/predicate"
	"starkshield/internal/prover/noir"
	"starkshield/internal/submitter"
	"starkshield/internal/wallet"
	"starkshield/internal/wallet/bridge"
	"starkshield/pkg/platform/circuit"
)

// app holds the long-lived collaborators built from configuration. Optional
// backends (Redis, Kafka) are connected on first use.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracer   tracer.Tracer

	node   *rpc.Client
	reader *chain.Reader
	guard  *nullifier.Guard

	redis    *platformredis.Client
	producer *producer.Producer
}

func newApp(cfg config.Config, logger *slog.Logger) *app {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	tr := tracer.NewOTel()

	breaker := circuit.New("starknet-rpc",
		circuit.WithFailureThreshold(cfg.Chain.BreakerFailures),
		circuit.WithCooldown(cfg.Chain.BreakerCooldown),
	)
	node := rpc.New(cfg.Chain.RPCURL,
		rpc.WithLogger(logger),
		rpc.WithTracer(tr),
		rpc.WithMetrics(m),
		rpc.WithBreaker(breaker),
		rpc.WithTimeout(cfg.Chain.RPCTimeout),
	)
	factory := func(address string) chain.Contract { return node.Contract(address) }
	reader := chain.NewReader(factory, cfg.Chain.RegistryAddress, chain.WithLogger(logger))

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  m,
		tracer:   tr,
		node:     node,
		reader:   reader,
		guard:    nullifier.NewGuard(reader, nullifier.WithLogger(logger), nullifier.WithMetrics(m)),
	}
}

func (a *app) network() wallet.Network {
	return wallet.Network{ChainID: a.cfg.Chain.ChainID, Alias: a.cfg.Chain.ChainAlias}
}

func (a *app) circuitIDs() predicate.CircuitIDs {
	return predicate.CircuitIDs{
		predicate.Age:        a.cfg.CircuitIDs.Age,
		predicate.Membership: a.cfg.CircuitIDs.Membership,
	}
}

func (a *app) historyStore(ctx context.Context) (history.Store, error) {
	switch a.cfg.History.Backend {
	case config.HistoryMemory:
		return history.NewMemoryStore(), nil
	case config.HistoryRedis:
		if a.redis == nil {
			client, err := platformredis.New(ctx, a.cfg.Redis, a.registry)
			if err != nil {
				return nil, err
			}
			if client == nil {
				return nil, fmt.Errorf("redis history backend requires STARKSHIELD_REDIS_URL")
			}
			a.redis = client
		}
		return history.NewRedisStore(a.redis.Client, a.cfg.History.RedisKey), nil
	default:
		return history.NewFileStore(a.cfg.History.Path), nil
	}
}

func (a *app) enricher(store history.Store) *history.Enricher {
	return history.NewEnricher(a.reader, store,
		history.WithLogger(a.logger),
		history.WithMetrics(a.metrics),
		history.WithConcurrency(a.cfg.History.Concurrency),
	)
}

func (a *app) publisher() (events.Publisher, error) {
	if a.cfg.Kafka.Brokers == "" {
		return events.NoopPublisher{}, nil
	}
	if a.producer == nil {
		pcfg := producer.DefaultConfig(a.cfg.Kafka.Brokers)
		pcfg.Acks = a.cfg.Kafka.Acks
		p, err := producer.New(pcfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		a.producer = p
	}
	return events.NewKafkaPublisher(a.producer,
		events.WithLogger(a.logger),
		events.WithTopic(a.cfg.Kafka.Topic),
	), nil
}

func (a *app) toolchain() *noir.Toolchain {
	return noir.New(noir.Config{
		CircuitsDir: a.cfg.Prover.CircuitsDir,
		NargoBin:    a.cfg.Prover.NargoBin,
		BBBin:       a.cfg.Prover.BBBin,
	}, noir.WithLogger(a.logger))
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	tc := a.toolchain()
	vks := calldata.NewVKSource(a.cfg.VK.Base, calldata.VKPaths{
		predicate.Age:        a.cfg.VK.AgePath,
		predicate.Membership: a.cfg.VK.MembershipPath,
	}, calldata.WithVKTracer(a.tracer), calldata.WithVKMetrics(a.metrics))
	builder := calldata.NewBuilder(vks, garaga.New(a.cfg.Prover.GaragaBin, garaga.WithLogger(a.logger)),
		calldata.WithLogger(a.logger),
		calldata.WithTracer(a.tracer),
		calldata.WithMetrics(a.metrics),
	)
	sub := submitter.New(a.cfg.Chain.RegistryAddress,
		wallet.NewNetworkGuard(a.network(), wallet.WithLogger(a.logger)),
		submitter.WithLogger(a.logger),
		submitter.WithTracer(a.tracer),
		submitter.WithMetrics(a.metrics),
		submitter.WithCircuitIDs(a.circuitIDs()),
	)
	return orchestrator.New(tc, tc, builder, sub,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithTracer(a.tracer),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithVerifier(tc),
		orchestrator.WithWitnessMapper(credential.NewWitnessMapper()),
		orchestrator.WithLayouts(predicate.DefaultLayouts(), a.cfg.LayoutVersion),
	)
}

func (a *app) session(ctx context.Context) (*pipeline.Session, *orchestrator.Orchestrator, error) {
	store, err := a.historyStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	pub, err := a.publisher()
	if err != nil {
		return nil, nil, err
	}
	orch := a.orchestrator()
	s := pipeline.New(orch, a.guard,
		pipeline.WithLogger(a.logger),
		pipeline.WithHistory(store),
		pipeline.WithEvents(pub),
	)
	return s, orch, nil
}

func (a *app) wallet() *bridge.Wallet {
	return bridge.New(a.cfg.Wallet.BridgeURL, a.node,
		bridge.WithLogger(a.logger),
		bridge.WithPollInterval(a.cfg.Wallet.PollInterval),
	)
}

func (a *app) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close failed", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "error", err)
		}
	}
}
