package raft

import (
	"time"

	"github.com/raftlayer/raft/internal/errors"
	"github.com/raftlayer/raft/internal/logger"
)

// defaultLogger builds the zap-backed Logger used when no WithLogger option
// is supplied. internal/logger.Logger and this package's Logger share an
// identical method set, so the concrete value satisfies both structurally.
func defaultLogger() (Logger, error) {
	return logger.NewLogger()
}

const (
	minElectionTimeout     = 100 * time.Millisecond
	maxElectionTimeout     = 2000 * time.Millisecond
	defaultElectionTimeout = 300 * time.Millisecond

	minHeartbeat     = 25 * time.Millisecond
	maxHeartbeat     = 300 * time.Millisecond
	defaultHeartbeat = 50 * time.Millisecond

	minMaxEntriesPerRPC     = 50
	maxMaxEntriesPerRPC     = 500
	defaultMaxEntriesPerRPC = 100

	defaultRetryCacheCapacity = 4096
	defaultRetryCacheTTL      = 5 * time.Minute

	defaultSnapshotChunkSize     = 64 * 1024
	defaultRPCSlownessTimeout    = 1 * time.Second
	defaultInstallSnapshotTimeout = 30 * time.Second
)

// Logger supports logging messages at the debug, info, warn, error, and fatal level.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
}

// MetricsSink receives the narrow set of gauges/histograms ServerCore and
// its appenders report; see metrics.go for the Prometheus-backed
// implementation.
type MetricsSink interface {
	SetTerm(term Term)
	SetCommitIndex(index LogIndex)
	SetLastAppliedIndex(index LogIndex)
	SetRole(role string)
	ObserveAppenderRPC(peer PeerID, d time.Duration)
	MarkAppenderSlow(peer PeerID, slow bool)
}

type options struct {
	electionTimeout  time.Duration
	heartbeatInterval time.Duration
	maxEntriesPerRPC int

	retryCacheCapacity int
	retryCacheTTL      time.Duration

	snapshotChunkSize      int
	installSnapshotEnabled bool
	installSnapshotTimeout time.Duration
	rpcSlownessTimeout     time.Duration

	logger  Logger
	metrics MetricsSink
}

func defaultOptions() options {
	return options{
		electionTimeout:        defaultElectionTimeout,
		heartbeatInterval:      defaultHeartbeat,
		maxEntriesPerRPC:       defaultMaxEntriesPerRPC,
		retryCacheCapacity:     defaultRetryCacheCapacity,
		retryCacheTTL:          defaultRetryCacheTTL,
		snapshotChunkSize:      defaultSnapshotChunkSize,
		installSnapshotEnabled: true,
		installSnapshotTimeout: defaultInstallSnapshotTimeout,
		rpcSlownessTimeout:     defaultRPCSlownessTimeout,
	}
}

// Option is a function that updates the options associated with ServerCore.
type Option func(options *options) error

// WithElectionTimeout sets the election timeout for the server.
func WithElectionTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout < minElectionTimeout || timeout > maxElectionTimeout {
			return errors.New("election timeout value is invalid")
		}
		o.electionTimeout = timeout
		return nil
	}
}

// WithHeartbeatInterval sets the heartbeat interval for the server.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(o *options) error {
		if interval < minHeartbeat || interval > maxHeartbeat {
			return errors.New("heartbeat interval value is invalid")
		}
		o.heartbeatInterval = interval
		return nil
	}
}

// WithMaxEntriesPerRPC sets the maximum number of log entries transmitted
// via a single AppendEntries RPC.
func WithMaxEntriesPerRPC(max int) Option {
	return func(o *options) error {
		if max < minMaxEntriesPerRPC || max > maxMaxEntriesPerRPC {
			return errors.New("maximum entries per RPC value is invalid")
		}
		o.maxEntriesPerRPC = max
		return nil
	}
}

// WithRetryCache sets the retry cache's capacity and per-entry TTL after
// completion.
func WithRetryCache(capacity int, ttl time.Duration) Option {
	return func(o *options) error {
		if capacity <= 0 {
			return errors.New("retry cache capacity must be positive")
		}
		o.retryCacheCapacity = capacity
		o.retryCacheTTL = ttl
		return nil
	}
}

// WithSnapshotChunkSize sets the byte size of a single chunk-mode
// InstallSnapshot RPC payload.
func WithSnapshotChunkSize(size int) Option {
	return func(o *options) error {
		if size <= 0 {
			return errors.New("snapshot chunk size must be positive")
		}
		o.snapshotChunkSize = size
		return nil
	}
}

// WithInstallSnapshotEnabled selects chunk-mode (true) or notify-mode
// (false) InstallSnapshot.
func WithInstallSnapshotEnabled(enabled bool) Option {
	return func(o *options) error {
		o.installSnapshotEnabled = enabled
		return nil
	}
}

// WithInstallSnapshotTimeout bounds how long a notify-mode install may stay
// in progress before its InProgressSnapshot marker is forcibly cleared.
func WithInstallSnapshotTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return errors.New("install snapshot timeout must be positive")
		}
		o.installSnapshotTimeout = timeout
		return nil
	}
}

// WithRPCSlownessTimeout sets the threshold past which a leader's appender
// marks itself slow.
func WithRPCSlownessTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return errors.New("RPC slowness timeout must be positive")
		}
		o.rpcSlownessTimeout = timeout
		return nil
	}
}

// WithLogger sets the logger used by the server.
func WithLogger(logger Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics sink the server reports to.
func WithMetrics(metrics MetricsSink) Option {
	return func(o *options) error {
		if metrics == nil {
			return errors.New("metrics sink must not be nil")
		}
		o.metrics = metrics
		return nil
	}
}
