package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
)

// Contract types understood by the indexer.
const (
	ContractTypeToken     = "token"
	ContractTypeExchange  = "exchange"
	ContractTypeTokenList = "token_list"
)

// Finality modes for the chain head used as the sync target.
const (
	FinalityLatest    = "latest"
	FinalitySafe      = "safe"
	FinalityFinalized = "finalized"
)

// DefaultBlockWindow is the maximum number of blocks covered by one log query.
const DefaultBlockWindow = 1_000_000

// Config represents the complete configuration for the SecTokenIndexer.
type Config struct {
	// Chain contains the RPC provider configuration
	Chain ChainConfig `yaml:"chain" json:"chain" toml:"chain"`

	// DB contains the database configuration
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	// Sync contains the mainloop configuration
	Sync SyncConfig `yaml:"sync" json:"sync" toml:"sync"`

	// Watchers are the statically configured contracts to index
	Watchers []WatcherConfig `yaml:"watchers" json:"watchers" toml:"watchers"`

	// TokenSources controls which database tables contribute token watchers
	TokenSources TokenSourcesConfig `yaml:"token_sources" json:"token_sources" toml:"token_sources"`

	// NodeSync contains the block sync monitor configuration
	NodeSync *NodeSyncConfig `yaml:"node_sync,omitempty" json:"node_sync,omitempty" toml:"node_sync,omitempty"`

	// Maintenance contains optional database maintenance settings
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`

	// API contains the REST API configuration
	API *APIConfig `yaml:"api,omitempty" json:"api,omitempty" toml:"api,omitempty"`
}

// ChainConfig represents the configuration of the chain RPC provider.
type ChainConfig struct {
	// RPCURL is the JSON-RPC endpoint URL
	RPCURL string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url"`

	// Finality specifies which head is synced to: "latest", "safe" or "finalized"
	Finality string `yaml:"finality" json:"finality" toml:"finality"`

	// FinalizedLag is the number of blocks behind head to stay
	// Only used when Finality is set to "latest"
	FinalizedLag uint64 `yaml:"finalized_lag" json:"finalized_lag" toml:"finalized_lag"`

	// RequestTimeout bounds every single provider call
	RequestTimeout internalcommon.Duration `yaml:"request_timeout" json:"request_timeout" toml:"request_timeout"`

	// RateLimit throttles provider calls, zero values disable it
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty" toml:"rate_limit,omitempty"`

	// Retry contains RPC retry configuration with exponential backoff
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`
}

// ApplyDefaults sets default values for optional chain configuration fields.
func (c *ChainConfig) ApplyDefaults() {
	if c.Finality == "" {
		c.Finality = FinalityLatest
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout = internalcommon.NewDuration(30 * time.Second) //nolint:mnd
	}
	if c.Retry == nil {
		c.Retry = &RetryConfig{}
	}
	c.Retry.ApplyDefaults()
}

// Validate checks if the chain configuration is valid.
func (c *ChainConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}

	if !slices.Contains([]string{FinalityLatest, FinalitySafe, FinalityFinalized}, c.Finality) {
		return fmt.Errorf("chain.finality must be one of: 'latest', 'safe', or 'finalized'")
	}

	if c.RateLimit != nil && c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("chain.rate_limit.requests_per_second must not be negative")
	}

	return nil
}

// RateLimitConfig configures the client side token bucket in front of the provider.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" toml:"requests_per_second"`

	// Burst is the bucket size
	Burst int `yaml:"burst" json:"burst" toml:"burst"`
}

// IsEnabled returns true if calls should be throttled.
func (r *RateLimitConfig) IsEnabled() bool {
	return r != nil && r.RequestsPerSecond > 0
}

// RetryConfig represents RPC retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff internalcommon.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff internalcommon.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = internalcommon.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = internalcommon.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	// Path is the file path to the SQLite database
	Path string `yaml:"path" json:"path" toml:"path"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	// WAL mode is recommended for better concurrency
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// Validate checks if the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("db.path is required")
	}

	if d.JournalMode != "" &&
		!slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("db.journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if d.Synchronous != "" && !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("db.synchronous must be one of: FULL, NORMAL, OFF")
	}

	return nil
}

// SyncConfig configures the mainloop driver.
type SyncConfig struct {
	// Interval is the sleep between two sync passes
	Interval internalcommon.Duration `yaml:"interval" json:"interval" toml:"interval"`

	// BlockWindow is the maximum number of blocks in one log query
	BlockWindow uint64 `yaml:"block_window" json:"block_window" toml:"block_window"`

	// Workers is the number of watchers synced concurrently
	Workers int `yaml:"workers" json:"workers" toml:"workers"`

	// StartBlock is the first block scanned for watchers without a checkpoint
	StartBlock uint64 `yaml:"start_block" json:"start_block" toml:"start_block"`

	// RequireSyncedNode skips passes while the node table reports no synced node
	RequireSyncedNode *bool `yaml:"require_synced_node,omitempty" json:"require_synced_node,omitempty" toml:"require_synced_node,omitempty"` //nolint:lll

	// OutageBackoff delays passes after consecutive provider outages
	OutageBackoff *OutageBackoffConfig `yaml:"outage_backoff,omitempty" json:"outage_backoff,omitempty" toml:"outage_backoff,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional sync configuration fields.
func (s *SyncConfig) ApplyDefaults() {
	if s.Interval.Duration == 0 {
		s.Interval = internalcommon.NewDuration(10 * time.Second) //nolint:mnd
	}
	if s.BlockWindow == 0 {
		s.BlockWindow = DefaultBlockWindow
	}
	if s.Workers == 0 {
		s.Workers = 4
	}
	if s.RequireSyncedNode == nil {
		required := true
		s.RequireSyncedNode = &required
	}
	if s.OutageBackoff == nil {
		s.OutageBackoff = &OutageBackoffConfig{}
	}
	s.OutageBackoff.ApplyDefaults()
}

// Validate checks if the sync configuration is valid.
func (s *SyncConfig) Validate() error {
	if s.Workers < 0 {
		return fmt.Errorf("sync.workers must not be negative")
	}

	return nil
}

// NodeRequired reports whether passes are gated on a synced node.
func (s *SyncConfig) NodeRequired() bool {
	return s.RequireSyncedNode == nil || *s.RequireSyncedNode
}

// OutageBackoffConfig configures the delay applied after consecutive provider outages.
type OutageBackoffConfig struct {
	// InitialInterval is the first extra delay
	InitialInterval internalcommon.Duration `yaml:"initial_interval" json:"initial_interval" toml:"initial_interval"`

	// MaxInterval caps the extra delay
	MaxInterval internalcommon.Duration `yaml:"max_interval" json:"max_interval" toml:"max_interval"`
}

// ApplyDefaults sets default values for the outage backoff.
func (o *OutageBackoffConfig) ApplyDefaults() {
	if o.InitialInterval.Duration == 0 {
		o.InitialInterval = internalcommon.NewDuration(5 * time.Second) //nolint:mnd
	}
	if o.MaxInterval.Duration == 0 {
		o.MaxInterval = internalcommon.NewDuration(5 * time.Minute) //nolint:mnd
	}
}

// WatcherConfig represents one statically configured contract.
type WatcherConfig struct {
	// Name is a human readable label used in logs
	Name string `yaml:"name" json:"name" toml:"name"`

	// Address is the contract address to watch
	Address string `yaml:"address" json:"address" toml:"address"`

	// ContractType selects the ABI: "token", "exchange" or "token_list"
	ContractType string `yaml:"contract_type" json:"contract_type" toml:"contract_type"`

	// Kinds restricts the event kinds followed, empty means all kinds of the contract type
	Kinds []string `yaml:"kinds,omitempty" json:"kinds,omitempty" toml:"kinds,omitempty"`
}

// Validate checks if the watcher configuration is valid.
func (w *WatcherConfig) Validate() error {
	if !common.IsHexAddress(w.Address) {
		return fmt.Errorf("address %q is not a valid hex address", w.Address)
	}

	if !IsContractType(w.ContractType) {
		return fmt.Errorf("contract_type must be one of: token, exchange, token_list")
	}

	return nil
}

// IsContractType reports whether t names a known contract type.
func IsContractType(t string) bool {
	return slices.Contains([]string{ContractTypeToken, ContractTypeExchange, ContractTypeTokenList}, t)
}

// TokenSourcesConfig selects the tables token watchers are derived from at each pass.
type TokenSourcesConfig struct {
	// ListedTokens follows every token in the listed_token table
	ListedTokens bool `yaml:"listed_tokens" json:"listed_tokens" toml:"listed_tokens"`

	// RegisteredTokens follows every known-template token discovered by the token list
	RegisteredTokens bool `yaml:"registered_tokens" json:"registered_tokens" toml:"registered_tokens"`
}

// NodeSyncConfig configures the block sync monitor.
type NodeSyncConfig struct {
	// Enabled controls whether the monitor runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// Interval is how often the node is checked
	Interval internalcommon.Duration `yaml:"interval" json:"interval" toml:"interval"`

	// StallThreshold is the number of checks without a new block before the node is unsynced
	StallThreshold int `yaml:"stall_threshold" json:"stall_threshold" toml:"stall_threshold"`
}

// ApplyDefaults sets default values for the node sync monitor.
func (n *NodeSyncConfig) ApplyDefaults() {
	if n.Interval.Duration == 0 {
		n.Interval = internalcommon.NewDuration(10 * time.Second) //nolint:mnd
	}
	if n.StallThreshold == 0 {
		n.StallThreshold = 3
	}
}

// MaintenanceConfig configures database maintenance behavior.
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often to run maintenance (e.g., "30m", "1h")
	CheckInterval internalcommon.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs maintenance immediately on startup
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	// WALCheckpointMode controls the WAL checkpoint aggressiveness
	// Options: PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = internalcommon.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" {
		validModes := []string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}
		if !slices.Contains(validModes, m.WALCheckpointMode) {
			return fmt.Errorf("maintenance.wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
		}
	}

	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components:
	//   - downloader: range sync and upserts
	//   - log-fetcher: event log retrieval
	//   - sync-manager: checkpoint tracking
	//   - indexer-coordinator: mainloop
	//   - event-decoder: log decoding
	//   - notification: notification derivation
	//   - node-sync: node sync monitor
	//   - rpc: provider client
	//   - api: REST API
	//   - maintenance: database maintenance
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[internalcommon.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := internalcommon.AllComponents[internalcommon.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[internalcommon.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if level, ok := l.ComponentLevels[component]; ok {
		return internalcommon.ToLowerWithTrim(level)
	}
	return l.GetDefaultLevel()
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	return internalcommon.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" {
			return fmt.Errorf("path is required when metrics are enabled")
		}
		if m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}
	return nil
}

// APIConfig configures the REST API server.
type APIConfig struct {
	// Enabled controls whether the API server runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address the API binds to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// ReadTimeout bounds reading a request
	ReadTimeout internalcommon.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`

	// WriteTimeout bounds writing a response
	WriteTimeout internalcommon.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`

	// IdleTimeout bounds keep-alive connections
	IdleTimeout internalcommon.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`

	// CORS configures cross origin requests
	CORS *CORSConfig `yaml:"cors,omitempty" json:"cors,omitempty" toml:"cors,omitempty"`
}

// CORSConfig configures cross origin resource sharing.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`
}

// ApplyDefaults sets default values for the API server.
func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8080"
	}
	if a.ReadTimeout.Duration == 0 {
		a.ReadTimeout = internalcommon.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.WriteTimeout.Duration == 0 {
		a.WriteTimeout = internalcommon.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.IdleTimeout.Duration == 0 {
		a.IdleTimeout = internalcommon.NewDuration(60 * time.Second) //nolint:mnd
	}
	if a.CORS == nil {
		a.CORS = &CORSConfig{}
	}
	if a.CORS.Enabled && len(a.CORS.AllowedOrigins) == 0 {
		a.CORS.AllowedOrigins = []string{"*"}
	}
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Chain.ApplyDefaults()
	c.DB.ApplyDefaults()
	c.Sync.ApplyDefaults()

	for i := range c.Watchers {
		c.Watchers[i].ContractType = strings.ToLower(strings.TrimSpace(c.Watchers[i].ContractType))
		if c.Watchers[i].Name == "" {
			c.Watchers[i].Name = fmt.Sprintf("%s-%s", c.Watchers[i].ContractType, c.Watchers[i].Address)
		}
	}

	if c.NodeSync != nil {
		c.NodeSync.ApplyDefaults()
	}

	if c.Maintenance != nil {
		c.Maintenance.ApplyDefaults()
	}

	if c.Logging != nil {
		c.Logging.ApplyDefaults()
	}

	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}

	if c.API != nil {
		c.API.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Chain.Validate(); err != nil {
		return err
	}

	if err := c.DB.Validate(); err != nil {
		return err
	}

	if err := c.Sync.Validate(); err != nil {
		return err
	}

	if c.Maintenance != nil {
		if err := c.Maintenance.Validate(); err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if len(c.Watchers) == 0 && !c.TokenSources.ListedTokens && !c.TokenSources.RegisteredTokens {
		return fmt.Errorf("at least one watcher or token source must be configured")
	}

	seen := make(map[string]bool)
	for i, w := range c.Watchers {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("watchers[%d] (%s): %w", i, w.Name, err)
		}

		key := strings.ToLower(w.Address) + "/" + w.ContractType
		if seen[key] {
			return fmt.Errorf("watchers[%d] (%s): duplicate watcher for %s", i, w.Name, w.Address)
		}
		seen[key] = true
	}

	return nil
}
