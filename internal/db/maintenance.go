package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
)

// Maintenance serializes SQLite housekeeping against indexing writes.
type Maintenance interface {
	// Run executes periodic maintenance until ctx is done.
	Run(ctx context.Context) error
	// AcquireOperationLock acquires a shared lock for database operations.
	// The returned function releases it.
	AcquireOperationLock() func()
	// RunMaintenance performs one maintenance round.
	RunMaintenance(ctx context.Context) error
	// GetMetrics returns current maintenance metrics.
	GetMetrics() MaintenanceMetrics
}

// MaintenanceMetrics provides visibility into maintenance operations.
type MaintenanceMetrics struct {
	LastMaintenanceTime  time.Time
	MaintenanceCount     uint64
	LastMaintenanceError error
}

// NoOpMaintenance is used when maintenance is not configured.
type NoOpMaintenance struct{}

// Run blocks until ctx is done.
func (NoOpMaintenance) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (NoOpMaintenance) AcquireOperationLock() func() { return func() {} }

func (NoOpMaintenance) RunMaintenance(context.Context) error { return nil }

func (NoOpMaintenance) GetMetrics() MaintenanceMetrics { return MaintenanceMetrics{} }

// MaintenanceCoordinator runs WAL checkpoints and VACUUM with exclusive access.
// Writers hold the read side of opLock, maintenance takes the write side.
type MaintenanceCoordinator struct {
	db     *sql.DB
	config config.MaintenanceConfig
	dbPath string
	log    *logger.Logger

	opLock sync.RWMutex

	metricsLock sync.Mutex
	metrics     MaintenanceMetrics
}

// NewMaintenanceCoordinator creates a coordinator, or a no-op when cfg is nil.
func NewMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
) Maintenance {
	if cfg == nil {
		return NoOpMaintenance{}
	}

	return newMaintenanceCoordinator(dbPath, db, *cfg, log)
}

func newMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg config.MaintenanceConfig,
	log *logger.Logger,
) *MaintenanceCoordinator {
	return &MaintenanceCoordinator{
		db:     db,
		config: cfg,
		dbPath: dbPath,
		log:    log.WithComponent(common.ComponentMaintenance),
	}
}

// Run executes maintenance every CheckInterval until ctx is done.
func (m *MaintenanceCoordinator) Run(ctx context.Context) error {
	if !m.config.Enabled {
		m.log.Info("background maintenance is disabled")
		<-ctx.Done()
		return nil
	}

	if m.config.VacuumOnStartup {
		if err := m.RunMaintenance(ctx); err != nil {
			m.log.Warnf("startup maintenance failed: %v", err)
		}
	}

	m.log.Infof("background maintenance started, interval: %v, checkpoint mode: %s",
		m.config.CheckInterval.Duration, m.config.WALCheckpointMode)

	ticker := time.NewTicker(m.config.CheckInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("background maintenance stopped")
			return nil
		case <-ticker.C:
			if err := m.RunMaintenance(ctx); err != nil {
				m.log.Warnf("periodic maintenance failed: %v", err)
			}
		}
	}
}

// RunMaintenance waits for in-flight operations, then checkpoints the WAL and vacuums.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	start := time.Now()
	maintenanceRuns.Inc()

	m.opLock.Lock()
	defer m.opLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	sizeBefore, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("failed to get db size: %v", err)
	}

	var runErr error
	if err := m.walCheckpoint(); err != nil {
		runErr = fmt.Errorf("WAL checkpoint failed: %w", err)
	}

	if err := m.vacuum(); err != nil && runErr == nil {
		runErr = fmt.Errorf("VACUUM failed: %w", err)
	}

	sizeAfter, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("failed to get db size: %v", err)
	}

	m.metricsLock.Lock()
	m.metrics.LastMaintenanceTime = time.Now().UTC()
	m.metrics.MaintenanceCount++
	m.metrics.LastMaintenanceError = runErr
	m.metricsLock.Unlock()

	maintenanceDuration.Observe(time.Since(start).Seconds())
	maintenanceLastRun.SetToCurrentTime()
	dbSize.Set(float64(sizeAfter))

	if runErr != nil {
		maintenanceOutcomes.WithLabelValues("error").Inc()
		m.log.Warnf("maintenance completed with errors in %v: %v", time.Since(start), runErr)
		return runErr
	}

	maintenanceOutcomes.WithLabelValues("success").Inc()
	if sizeBefore > sizeAfter {
		m.log.Infof("maintenance reclaimed %d MB in %v",
			common.BytesToMB(uint64(sizeBefore-sizeAfter)), time.Since(start))
	}

	return nil
}

func (m *MaintenanceCoordinator) walCheckpoint() error {
	var mode string
	if err := m.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}

	if !strings.EqualFold(mode, "wal") {
		return nil
	}

	var busy, logFrames, checkpointed int
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.config.WALCheckpointMode)
	if err := m.db.QueryRow(query).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return err
	}

	if busy > 0 {
		m.log.Warnf("WAL checkpoint left %d busy pages", busy)
	}
	m.log.Debugf("WAL checkpoint %s: log_frames=%d checkpointed=%d", m.config.WALCheckpointMode, logFrames, checkpointed)

	return nil
}

func (m *MaintenanceCoordinator) vacuum() error {
	if err := Vacuum(m.db); err != nil {
		if strings.Contains(err.Error(), "database is locked") {
			return fmt.Errorf("cannot vacuum: database is locked (retry later)")
		}
		return err
	}

	return nil
}

// AcquireOperationLock takes the shared side of the maintenance lock.
func (m *MaintenanceCoordinator) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

// GetMetrics returns current maintenance metrics.
func (m *MaintenanceCoordinator) GetMetrics() MaintenanceMetrics {
	m.metricsLock.Lock()
	defer m.metricsLock.Unlock()

	return m.metrics
}
