package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Backend string

const (
	BackendRedis  Backend = "redis"
	BackendDynamo Backend = "dynamo"
	BackendMemory Backend = "memory"
)

// Policy holds the timing of the matching engine. Defaults are the reference values.
type Policy struct {
	MatchInterval        time.Duration `yaml:"match_interval"`
	ExpiryInterval       time.Duration `yaml:"expiry_interval"`
	CategoryRelaxAfter   time.Duration `yaml:"category_relax_after"`
	DifficultyRelaxAfter time.Duration `yaml:"difficulty_relax_after"`
	ExpireAfter          time.Duration `yaml:"expire_after"`
	SweepTimeout         time.Duration `yaml:"sweep_timeout"`
	HandoffTimeout       time.Duration `yaml:"handoff_timeout"`
	HandoffConcurrency   int           `yaml:"handoff_concurrency"`
	StatusPushInterval   time.Duration `yaml:"status_push_interval"`
}

func DefaultPolicy() Policy {
	return Policy{
		MatchInterval:        4 * time.Second,
		ExpiryInterval:       time.Second,
		CategoryRelaxAfter:   15 * time.Second,
		DifficultyRelaxAfter: 30 * time.Second,
		ExpireAfter:          45 * time.Second,
		SweepTimeout:         3 * time.Second,
		HandoffTimeout:       5 * time.Second,
		HandoffConcurrency:   4,
		StatusPushInterval:   time.Second,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.MatchInterval <= 0, p.ExpiryInterval <= 0, p.StatusPushInterval <= 0:
		return fmt.Errorf("sweep intervals must be positive")
	case p.CategoryRelaxAfter < 0 || p.DifficultyRelaxAfter < p.CategoryRelaxAfter:
		return fmt.Errorf("relaxation thresholds must satisfy 0 <= category (%s) <= difficulty (%s)", p.CategoryRelaxAfter, p.DifficultyRelaxAfter)
	case p.ExpireAfter <= p.DifficultyRelaxAfter:
		return fmt.Errorf("expire_after (%s) must exceed difficulty_relax_after (%s)", p.ExpireAfter, p.DifficultyRelaxAfter)
	case p.HandoffConcurrency < 1:
		return fmt.Errorf("handoff_concurrency must be at least 1")
	}
	return nil
}

// LoadPolicy overlays the YAML file at path on the defaults. An empty path returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read match policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse match policy %s: %w", path, err)
	}
	return p, p.Validate()
}

type Config struct {
	Env              string
	LogMode          string
	Backend          Backend
	RedisAddr        string
	RedisPassword    string
	DynamoTable      string
	AWSRegion        string
	CollabServiceURL string
	JWTSecret        string
	GatewayPort      string
	OtelEnabled      bool
	Policy           Policy
}

func getEnv(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func getBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Load reads the environment. Call utils.LoadEnv first in dev/test.
func Load() (Config, error) {
	policy, err := LoadPolicy(os.Getenv("MATCH_POLICY_FILE"))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Env:              getEnv("ENV", "LOCAL"),
		LogMode:          getEnv("LOG_MODE", "development"),
		Backend:          Backend(strings.ToLower(getEnv("QUEUE_BACKEND", string(BackendRedis)))),
		RedisAddr:        getEnv("REDIS_MATCHMAKE_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PW"),
		DynamoTable:      getEnv("DYNAMO_TABLE", "MatchRequests"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		CollabServiceURL: strings.TrimRight(os.Getenv("COLLAB_SERVICE_URL"), "/"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		GatewayPort:      getEnv("GATEWAY_PORT", "8082"),
		OtelEnabled:      getBool("OTEL_ENABLED", false),
		Policy:           policy,
	}
	switch cfg.Backend {
	case BackendRedis, BackendDynamo, BackendMemory:
	default:
		return cfg, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.Backend)
	}
	return cfg, nil
}
