package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"chainbal/internal/fault"
)

type Config struct {
	RPCURL           string
	RPCTimeout       time.Duration
	PriceURL         string
	PriceTimeout     time.Duration
	PriceIDs         map[string]string
	NativeSymbol     string
	NativeDecimals   int
	AssetID          uint32
	AssetSymbol      string
	AssetDecimals    int
	DisplayPrecision int
	HTTPAddr         string
	RateLimit        float64
	RedisAddr        string
	CacheTTL         time.Duration
	DBDriver         string
	DBDSN            string
	KafkaBrokers     []string
	KafkaTopic       string
	WatchAddresses   []string
	PollInterval     time.Duration
	WatchWorkers     int
	OtelEndpoint     string
	LogLevel         string
	LogFormat        string
	LogFile          string
	LogMaxSizeMB     int
	LogMaxBackups    int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

type layered []EnvSource

func (l layered) Lookup(key string) (string, bool) {
	for _, source := range l {
		if source == nil {
			continue
		}
		if value, ok := source.Lookup(key); ok {
			return value, true
		}
	}
	return "", false
}

// Layered resolves each key from the first source that defines it.
func Layered(sources ...EnvSource) EnvSource {
	return layered(sources)
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, &fault.ConfigError{Key: "env", Reason: "source is required"}
	}

	rpcURL, ok := source.Lookup("RPC_URL")
	if !ok || strings.TrimSpace(rpcURL) == "" {
		return Config{}, &fault.ConfigError{Key: "RPC_URL", Reason: "is required"}
	}

	rpcTimeout, err := parseDurationEnv(source, "RPC_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	priceTimeout, err := parseDurationEnv(source, "PRICE_TIMEOUT", 3*time.Second)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDurationEnv(source, "CACHE_TTL", 6*time.Second)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDurationEnv(source, "POLL_INTERVAL", 12*time.Second)
	if err != nil {
		return Config{}, err
	}

	nativeDecimals, err := parseUintEnv(source, "NATIVE_DECIMALS", 12, 38)
	if err != nil {
		return Config{}, err
	}
	assetDecimals, err := parseUintEnv(source, "ASSET_DECIMALS", 6, 38)
	if err != nil {
		return Config{}, err
	}
	precision, err := parseUintEnv(source, "DISPLAY_PRECISION", 4, 38)
	if err != nil {
		return Config{}, err
	}
	assetID, err := parseUintEnv(source, "ASSET_ID", 1984, 1<<32-1)
	if err != nil {
		return Config{}, err
	}
	watchWorkers, err := parseUintEnv(source, "WATCH_WORKERS", 4, 1024)
	if err != nil {
		return Config{}, err
	}
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100, 1<<20)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3, 1024)
	if err != nil {
		return Config{}, err
	}

	rateLimit := 20.0
	if raw, ok := source.Lookup("RATE_LIMIT"); ok && strings.TrimSpace(raw) != "" {
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || value < 0 {
			return Config{}, &fault.ConfigError{Key: "RATE_LIMIT", Reason: "must be a non-negative number"}
		}
		rateLimit = value
	}

	dbDriver := lookupDefault(source, "DB_DRIVER", "sqlite")
	switch dbDriver {
	case "sqlite", "mysql":
	default:
		return Config{}, &fault.ConfigError{Key: "DB_DRIVER", Reason: "must be sqlite or mysql"}
	}
	dbDSN := lookupDefault(source, "DB_DSN", "")
	if dbDSN == "" && dbDriver == "sqlite" {
		dbDSN = "data/chainbal.db"
	}

	priceIDs, err := parsePairs(source, "PRICE_IDS")
	if err != nil {
		return Config{}, err
	}

	redisAddr, _ := source.Lookup("REDIS_ADDR")
	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	priceURL, _ := source.Lookup("PRICE_URL")
	logFile, _ := source.Lookup("LOG_FILE")

	return Config{
		RPCURL:           strings.TrimSpace(rpcURL),
		RPCTimeout:       rpcTimeout,
		PriceURL:         strings.TrimSpace(priceURL),
		PriceTimeout:     priceTimeout,
		PriceIDs:         priceIDs,
		NativeSymbol:     lookupDefault(source, "NATIVE_SYMBOL", "KSM"),
		NativeDecimals:   int(nativeDecimals),
		AssetID:          uint32(assetID),
		AssetSymbol:      lookupDefault(source, "ASSET_SYMBOL", "USDt"),
		AssetDecimals:    int(assetDecimals),
		DisplayPrecision: int(precision),
		HTTPAddr:         lookupDefault(source, "HTTP_ADDR", ":8080"),
		RateLimit:        rateLimit,
		RedisAddr:        strings.TrimSpace(redisAddr),
		CacheTTL:         cacheTTL,
		DBDriver:         dbDriver,
		DBDSN:            dbDSN,
		KafkaBrokers:     parseList(source, "KAFKA_BROKERS"),
		KafkaTopic:       lookupDefault(source, "KAFKA_TOPIC", "chainbal-snapshots"),
		WatchAddresses:   parseList(source, "WATCH_ADDRESSES"),
		PollInterval:     pollInterval,
		WatchWorkers:     int(watchWorkers),
		OtelEndpoint:     strings.TrimSpace(otelEndpoint),
		LogLevel:         lookupDefault(source, "LOG_LEVEL", "info"),
		LogFormat:        lookupDefault(source, "LOG_FORMAT", "text"),
		LogFile:          strings.TrimSpace(logFile),
		LogMaxSizeMB:     int(logMaxSize),
		LogMaxBackups:    int(logMaxBackups),
	}, nil
}

func lookupDefault(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseUintEnv(source EnvSource, key string, defaultValue, maxValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &fault.ConfigError{Key: key, Reason: err.Error()}
	}
	if value > maxValue {
		return 0, &fault.ConfigError{Key: key, Reason: "must be at most " + strconv.FormatUint(maxValue, 10)}
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, &fault.ConfigError{Key: key, Reason: err.Error()}
	}
	if duration <= 0 {
		return 0, &fault.ConfigError{Key: key, Reason: "must be positive"}
	}
	return duration, nil
}

func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}

// parsePairs reads "KEY=value,KEY2=value2".
func parsePairs(source EnvSource, key string) (map[string]string, error) {
	items := parseList(source, key)
	if len(items) == 0 {
		return nil, nil
	}
	pairs := make(map[string]string, len(items))
	for _, item := range items {
		name, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, &fault.ConfigError{Key: key, Reason: "expected SYMBOL=id pairs"}
		}
		pairs[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return pairs, nil
}
