// Package config reads runtime configuration from STARKSHIELD_* environment
// variables. Defaults target Starknet Sepolia.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "STARKSHIELD_"

// Sepolia deployment defaults.
const (
	DefaultRPCURL          = "https://free-rpc.nethermind.io/sepolia-juno/v0_8"
	DefaultRegistryAddress = "0x054ca264033ae3b5874574c84de9c6086d94a66fb65445e455a8cef3137b7fab"
	DefaultChainID         = "0x534e5f5345504f4c4941"
	DefaultChainAlias      = "SN_SEPOLIA"
)

// History backends.
const (
	HistoryMemory = "memory"
	HistoryFile   = "file"
	HistoryRedis  = "redis"
)

type Config struct {
	Environment string
	HTTPAddr    string
	Log         LogConfig
	Chain       ChainConfig
	Prover      ProverConfig
	VK          VKConfig
	Wallet      WalletConfig
	History     HistoryConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	// LayoutVersion pins the public-signal layout of the deployed circuits.
	LayoutVersion string
	CircuitIDs    CircuitIDs
}

type LogConfig struct {
	Level  string
	Format string
}

type ChainConfig struct {
	RPCURL          string
	RPCTimeout      time.Duration
	RegistryAddress string
	ChainID         string
	ChainAlias      string
	// BreakerFailures is the number of consecutive transport failures that
	// open the RPC circuit breaker.
	BreakerFailures int
	BreakerCooldown time.Duration
}

type ProverConfig struct {
	CircuitsDir string
	NargoBin    string
	BBBin       string
	GaragaBin   string
}

// VKConfig locates verifying keys. Base is a directory or an http(s) URL and
// the paths are resolved against it.
type VKConfig struct {
	Base           string
	AgePath        string
	MembershipPath string
}

type WalletConfig struct {
	BridgeURL    string
	PollInterval time.Duration
}

type HistoryConfig struct {
	Backend     string
	Path        string
	RedisKey    string
	Concurrency int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers string
	Topic   string
	Acks    string
}

type CircuitIDs struct {
	Age        uint8
	Membership uint8
}

// LoadDotEnv loads variables from the given files, or .env when none is given.
// Missing files are ignored and variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// FromEnv builds a Config from the environment. Malformed values are errors
// rather than silent fallbacks.
func FromEnv() (Config, error) {
	r := reader{lookup: os.LookupEnv}
	cfg := Config{
		Environment: r.str("ENV", "development"),
		HTTPAddr:    r.str("HTTP_ADDR", ":8080"),
		Log: LogConfig{
			Level:  r.str("LOG_LEVEL", "info"),
			Format: r.str("LOG_FORMAT", "json"),
		},
		Chain: ChainConfig{
			RPCURL:          r.str("RPC_URL", DefaultRPCURL),
			RPCTimeout:      r.duration("RPC_TIMEOUT", 15*time.Second),
			RegistryAddress: r.str("REGISTRY_ADDRESS", DefaultRegistryAddress),
			ChainID:         r.str("CHAIN_ID", DefaultChainID),
			ChainAlias:      r.str("CHAIN_ALIAS", DefaultChainAlias),
			BreakerFailures: r.integer("RPC_BREAKER_FAILURES", 5),
			BreakerCooldown: r.duration("RPC_BREAKER_COOLDOWN", 10*time.Second),
		},
		Prover: ProverConfig{
			CircuitsDir: r.str("CIRCUITS_DIR", "./circuits"),
			NargoBin:    r.str("NARGO_BIN", "nargo"),
			BBBin:       r.str("BB_BIN", "bb"),
			GaragaBin:   r.str("GARAGA_BIN", "garaga"),
		},
		VK: VKConfig{
			Base:           r.str("VK_BASE", "./public"),
			AgePath:        r.str("VK_AGE_PATH", "/vk/age_verify.vk"),
			MembershipPath: r.str("VK_MEMBERSHIP_PATH", "/vk/membership_proof.vk"),
		},
		Wallet: WalletConfig{
			BridgeURL:    r.str("WALLET_BRIDGE_URL", "http://127.0.0.1:5050"),
			PollInterval: r.duration("TX_POLL_INTERVAL", 3*time.Second),
		},
		History: HistoryConfig{
			Backend:     strings.ToLower(r.str("HISTORY_BACKEND", HistoryFile)),
			Path:        r.str("HISTORY_PATH", "./starkshield-history.json"),
			RedisKey:    r.str("HISTORY_REDIS_KEY", "starkshield:verifications"),
			Concurrency: r.integer("HISTORY_CONCURRENCY", 4),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: r.str("KAFKA_BROKERS", ""),
			Topic:   r.str("KAFKA_TOPIC", "starkshield.submissions"),
			Acks:    r.str("KAFKA_ACKS", "all"),
		},
		LayoutVersion: r.str("PUBLIC_SIGNAL_LAYOUT", "v1"),
		CircuitIDs: CircuitIDs{
			Age:        r.uint8("CIRCUIT_ID_AGE", 0),
			Membership: r.uint8("CIRCUIT_ID_MEMBERSHIP", 1),
		},
	}
	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch c.History.Backend {
	case HistoryMemory, HistoryFile:
	case HistoryRedis:
		if c.Redis.URL == "" {
			errs = append(errs, fmt.Errorf("%sREDIS_URL is required for the redis history backend", envPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("%sHISTORY_BACKEND must be memory, file or redis, got %q", envPrefix, c.History.Backend))
	}
	if c.CircuitIDs.Age == c.CircuitIDs.Membership {
		errs = append(errs, fmt.Errorf("circuit ids must differ, both are %d", c.CircuitIDs.Age))
	}
	if c.Chain.RegistryAddress == "" {
		errs = append(errs, fmt.Errorf("%sREGISTRY_ADDRESS is required", envPrefix))
	}
	return errors.Join(errs...)
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) raw(key string) (string, bool) {
	v, ok := r.lookup(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
		return def
	}
	return d
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
		return def
	}
	return n
}

func (r *reader) uint8(key string, def uint8) uint8 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
		return def
	}
	return uint8(n)
}
