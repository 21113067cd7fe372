package crash

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"movefuzz/config"
	"movefuzz/internal/moveargs"
	"movefuzz/pkg/mq"
	"movefuzz/pkg/telemetry"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ArtifactPrefixes are the file name prefixes libFuzzer uses for findings.
var ArtifactPrefixes = []string{"crash-", "leak-", "oom-", "timeout-"}

// IsArtifact reports whether path names a libFuzzer finding.
func IsArtifact(path string) bool {
	base := filepath.Base(path)
	for _, prefix := range ArtifactPrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// Fuzzlet identifies the build that produced a crash.
type Fuzzlet struct {
	Target    string
	Sanitizer string
	Triple    string
	Signature []moveargs.Kind
}

type Report struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Sanitizer string    `json:"sanitizer"`
	Triple    string    `json:"triple"`
	Digest    string    `json:"digest"`
	Path      string    `json:"path"`
	Stored    string    `json:"stored,omitempty"` // copy under the crash store, if configured
	Arguments []string  `json:"arguments"`
	FoundAt   time.Time `json:"found_at"`
}

// Describe decodes a raw input with sig and prints each transaction argument.
func Describe(sig []moveargs.Kind, data []byte) []string {
	lowered := moveargs.Decode(sig, data).Lower()
	out := make([]string, len(lowered))
	for i, arg := range lowered {
		out[i] = arg.String()
	}
	return out
}

type CrashManager struct {
	logger      *zap.Logger
	sinks       []Sink
	crashFolder string

	mu   sync.Mutex
	seen map[string]*Report
}

type CrashManagerParams struct {
	fx.In

	Config *config.AppConfig
	Logger *zap.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQ     mq.RabbitMQ
}

// NewCrashManager reports to every crash sink that is configured.
func NewCrashManager(p CrashManagerParams) *CrashManager {
	var sinks []Sink
	if p.DB != nil {
		sinks = append(sinks, &dbSink{p.DB})
	}
	if p.Redis != nil {
		sinks = append(sinks, &redisSink{p.Redis, p.Config.CrashStore.RedisPrefix})
	}
	if p.MQ != nil {
		sinks = append(sinks, &queueSink{p.MQ, p.Config.CrashStore.QueueName})
	}
	c := NewCrashManagerWithSinks(p.Logger, sinks...)
	c.crashFolder = p.Config.CrashStore.Dir
	return c
}

func NewCrashManagerWithSinks(logger *zap.Logger, sinks ...Sink) *CrashManager {
	return &CrashManager{
		logger: logger.Named("crash"),
		sinks:  sinks,
		seen:   make(map[string]*Report),
	}
}

// store copies a crash to <crashFolder>/<target>/<sanitizer>/<digest>.
func (c *CrashManager) store(report *Report, crashData []byte) (string, error) {
	crashStore := filepath.Join(c.crashFolder, report.Target, report.Sanitizer)
	if err := os.MkdirAll(crashStore, 0755); err != nil {
		return "", fmt.Errorf("failed to create crash store directory: %w", err)
	}
	crashPath := filepath.Join(crashStore, report.Digest)
	if err := os.WriteFile(crashPath, crashData, 0644); err != nil {
		return "", fmt.Errorf("failed to write crash file: %w", err)
	}
	return crashPath, nil
}

// Collect gathers the paths received on rCh. Once rCh is closed (the engine
// has exited and its files are complete) each path is reported, and the unique
// reports are sent on the returned channel.
func (c *CrashManager) Collect(ctx context.Context, fuzzlet Fuzzlet, rCh <-chan string) <-chan []*Report {
	out := make(chan []*Report, 1)
	crashTracer := telemetry.FromContext(ctx).Spawn("crash manager")
	crashTracer.Start()
	go func() {
		defer close(out)
		defer crashTracer.End()

		var paths []string
		for path := range rCh {
			c.logger.Debug("new crash file received", zap.String("file", path))
			if len(paths) == 0 {
				crashTracer.AddEvent("first_crash_found",
					telemetry.NewEventAttributes(map[string]string{
						"crash_name": filepath.Base(path),
					}))
			}
			paths = append(paths, path)
		}
		c.logger.Debug("crash channel closed")

		var reports []*Report
		for _, path := range paths {
			report, fresh, err := c.Report(ctx, fuzzlet, path)
			if err != nil {
				c.logger.Error("failed to process crash file", zap.Error(err))
				continue
			}
			if fresh {
				reports = append(reports, report)
			}
		}

		crashTracer.WithAttributes(telemetry.EmptySpanAttributes().WithTarget(fuzzlet.Target).WithCrashCount(len(reports)))
		out <- reports
	}()
	return out
}

// Report processes a single crash file. fresh is false when a file with the
// same content was already reported by this manager.
func (c *CrashManager) Report(ctx context.Context, fuzzlet Fuzzlet, path string) (report *Report, fresh bool, err error) {
	crashData, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read crash file: %w", err)
	}
	crashMd5 := md5.Sum(crashData)
	digest := hex.EncodeToString(crashMd5[:])

	c.mu.Lock()
	if existing, ok := c.seen[digest]; ok {
		c.mu.Unlock()
		c.logger.Debug("duplicate crash ignored", zap.String("digest", digest), zap.String("file", path))
		return existing, false, nil
	}
	report = &Report{
		ID:        uuid.NewString(),
		Target:    fuzzlet.Target,
		Sanitizer: fuzzlet.Sanitizer,
		Triple:    fuzzlet.Triple,
		Digest:    digest,
		Path:      path,
		Arguments: Describe(fuzzlet.Signature, crashData),
		FoundAt:   time.Now(),
	}
	c.seen[digest] = report
	c.mu.Unlock()

	if c.crashFolder != "" {
		stored, err := c.store(report, crashData)
		if err != nil {
			c.logger.Error("failed to store crash", zap.Error(err))
		}
		report.Stored = stored
	}

	c.logger.Info("crash found",
		zap.String("target", report.Target),
		zap.String("digest", digest),
		zap.String("file", path),
		zap.Strings("arguments", report.Arguments))

	for _, sink := range c.sinks {
		if err := sink.Send(ctx, report); err != nil {
			c.logger.Error("failed to report crash", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
	return report, true, nil
}
