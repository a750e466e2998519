package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/chenming7777/tradefloor/internal/domain"
)

// Config holds all runtime configuration for the trading floor.
type Config struct {
	NATSURL  string
	LogLevel string
	HTTPPort int

	Brokers          int
	TradersPerBroker int
	InitialCash      int64 // cents
	QueueCapacity    int
	FeedWindow       int

	RunDuration  time.Duration
	FeedInterval time.Duration
	MinFillDelay time.Duration
	MaxFillDelay time.Duration
	FillDupProb  float64
	FillDropProb float64

	TicksSubject  string
	OrdersSubject string
	StatusSubject string
}

// Load reads configuration from a .env file if present, then the
// environment, applies defaults, and validates values. It returns an
// error for any invalid value.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env file is fine

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	httpPort, err := getInt("HTTP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_PORT: %w", err)
	}

	brokers, err := getInt("BROKER_COUNT", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid BROKER_COUNT: %w", err)
	}
	if brokers < 1 {
		return nil, fmt.Errorf("invalid BROKER_COUNT: must be at least 1")
	}

	tradersPerBroker, err := getInt("TRADERS_PER_BROKER", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid TRADERS_PER_BROKER: %w", err)
	}
	if tradersPerBroker < 1 {
		return nil, fmt.Errorf("invalid TRADERS_PER_BROKER: must be at least 1")
	}

	initialCash, err := getMoney("INITIAL_CASH", 500000)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_CASH: %w", err)
	}
	if initialCash < 0 {
		return nil, fmt.Errorf("invalid INITIAL_CASH: must not be negative")
	}

	queueCapacity, err := getInt("QUEUE_CAPACITY", 16)
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_CAPACITY: %w", err)
	}
	if queueCapacity < 1 {
		return nil, fmt.Errorf("invalid QUEUE_CAPACITY: must be at least 1")
	}

	feedWindow, err := getInt("FEED_WINDOW", 16)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_WINDOW: %w", err)
	}
	if feedWindow < 1 {
		return nil, fmt.Errorf("invalid FEED_WINDOW: must be at least 1")
	}

	runDuration, err := getDuration("RUN_DURATION", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_DURATION: %w", err)
	}

	feedInterval, err := getDuration("FEED_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_INTERVAL: %w", err)
	}

	minFillDelay, err := getDuration("MIN_FILL_DELAY", 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_FILL_DELAY: %w", err)
	}

	maxFillDelay, err := getDuration("MAX_FILL_DELAY", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_FILL_DELAY: %w", err)
	}
	if maxFillDelay < minFillDelay {
		return nil, fmt.Errorf("invalid MAX_FILL_DELAY: must not be below MIN_FILL_DELAY")
	}

	fillDupProb, err := getProb("FILL_DUP_PROB", 0.05)
	if err != nil {
		return nil, fmt.Errorf("invalid FILL_DUP_PROB: %w", err)
	}

	fillDropProb, err := getProb("FILL_DROP_PROB", 0.01)
	if err != nil {
		return nil, fmt.Errorf("invalid FILL_DROP_PROB: %w", err)
	}

	return &Config{
		NATSURL:          getStr("NATS_URL", "nats://127.0.0.1:4222"),
		LogLevel:         logLevel,
		HTTPPort:         httpPort,
		Brokers:          brokers,
		TradersPerBroker: tradersPerBroker,
		InitialCash:      initialCash,
		QueueCapacity:    queueCapacity,
		FeedWindow:       feedWindow,
		RunDuration:      runDuration,
		FeedInterval:     feedInterval,
		MinFillDelay:     minFillDelay,
		MaxFillDelay:     maxFillDelay,
		FillDupProb:      fillDupProb,
		FillDropProb:     fillDropProb,
		TicksSubject:     getStr("TICKS_SUBJECT", "stocks"),
		OrdersSubject:    getStr("ORDERS_SUBJECT", "orders"),
		StatusSubject:    getStr("STATUS_SUBJECT", "order_status"),
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

// getMoney parses a dollar amount into cents, rejecting values with
// sub-cent precision.
func getMoney(key string, defaultCents int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultCents, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return domain.DollarsToCents(f)
}

// getProb parses a probability in [0, 1].
func getProb(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("must be between 0 and 1")
	}
	return f, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
