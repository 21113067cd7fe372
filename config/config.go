package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	LogLevel    string
	ServiceName string

	FuzzDir    string // optional workspace override, same as --fuzz-dir
	HostTriple string // skips `rustc -vV` detection when set
	Cargo      string
	LLVMPath   string // directory holding llvm-profdata

	GracePeriod time.Duration // time between SIGINT and SIGKILL for cancelled subprocesses
	DefaultJobs int           // used by `run` when --jobs is not given

	CrashStore   CrashStoreConfig
	Telemetry    bool
	TraceContext string // exported parent span, joins an outer trace
	DatabaseURL  string
	RabbitMQURL  string

	RedisSentinelHosts string
	RedisMasterName    string
	RedisUrl           string
}

type CrashStoreConfig struct {
	Dir         string // unique crashes are copied here when set
	QueueName   string
	RedisPrefix string
}

func LoadConfig() *AppConfig {
	godotenv.Load()

	config := &AppConfig{
		LogLevel:    os.Getenv("LOG_LEVEL"),
		ServiceName: os.Getenv("SERVICE_NAME"),
		FuzzDir:     os.Getenv("FUZZ_DIR"),
		HostTriple:  os.Getenv("HOST_TRIPLE"),
		Cargo:       os.Getenv("CARGO"),
		LLVMPath:    os.Getenv("LLVM_PATH"),
		GracePeriod: parseDuration(os.Getenv("GRACE_PERIOD"), 5*time.Second),
		DefaultJobs: parseInt(os.Getenv("FUZZ_JOBS"), 1),
		CrashStore: CrashStoreConfig{
			Dir:         os.Getenv("CRASH_DIR"),
			QueueName:   os.Getenv("CRASH_QUEUE"),
			RedisPrefix: os.Getenv("CRASH_REDIS_PREFIX"),
		},
		Telemetry:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "",
		TraceContext: os.Getenv("MOVE_FUZZ_TRACE_CONTEXT"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),

		RedisSentinelHosts: os.Getenv("REDIS_SENTINEL_HOSTS"),
		RedisMasterName:    os.Getenv("REDIS_MASTER"),
		RedisUrl:           os.Getenv("REDIS_URL"),
	}

	if config.LogLevel == "" {
		config.LogLevel = "info" // Set default log level
	}
	if config.ServiceName == "" {
		config.ServiceName = "move-fuzz"
	}
	if config.Cargo == "" {
		config.Cargo = "cargo"
	}
	if config.CrashStore.QueueName == "" {
		config.CrashStore.QueueName = "crash_queue"
	}
	if config.CrashStore.RedisPrefix == "" {
		config.CrashStore.RedisPrefix = "movefuzz:crashes"
	}

	return config
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
