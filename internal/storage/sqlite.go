// Package storage keeps a queryable SQLite index of participants and
// trial runs. The per-participant CSV ledger remains the source of
// truth; the registry exists so an administrator can query across
// participants without walking the output tree.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "tapsync.sqlite3"

const errDBClientNil = "db client is nil"

// DBClient wraps the GORM handle and the underlying sql.DB pool.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Participant is one registered participant and their fixed
// allocation.
type Participant struct {
	ID         string `gorm:"primaryKey;type:varchar(9)"`
	SessionID  string `gorm:"type:varchar(36);index:idx_session"`
	Allocation string
	CreatedAt  time.Time
}

// TrialRun indexes one recorded trial, including failed attempts.
type TrialRun struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ParticipantID  string `gorm:"type:varchar(9);index:idx_participant"`
	StimulusNumber int
	TrialNumber    int
	Failed         bool
	FailureReason  string
	RecordingPath  string
	CreatedAt      time.Time
}

// NewDBClient opens the registry at TAPSYNC_DB_PATH, falling back to
// the default file in the working directory.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("TAPSYNC_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Participant{}, &TrialRun{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterParticipant records a participant and returns their session
// UUID. Registering an existing participant is idempotent and returns
// the original session; the allocation is never mutated.
func (c *DBClient) RegisterParticipant(participantID, allocation string) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	var p Participant
	err := c.DB.Where("id = ?", participantID).First(&p).Error
	if err == nil {
		return p.SessionID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying participant: %w", err)
	}

	p = Participant{
		ID:         participantID,
		SessionID:  uuid.NewString(),
		Allocation: allocation,
	}
	if err := c.DB.Create(&p).Error; err != nil {
		// a concurrent registration may have won the insert
		var existing Participant
		if qerr := c.DB.Where("id = ?", participantID).First(&existing).Error; qerr == nil {
			return existing.SessionID, nil
		}
		return "", fmt.Errorf("creating participant: %w", err)
	}
	return p.SessionID, nil
}

// RecordTrial appends a trial run to the index.
func (c *DBClient) RecordTrial(run TrialRun) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if err := c.DB.Create(&run).Error; err != nil {
		return fmt.Errorf("recording trial: %w", err)
	}
	return nil
}

// ListTrials returns the indexed trial runs for a participant, in
// (stimulus, trial, insertion) order.
func (c *DBClient) ListTrials(participantID string) ([]TrialRun, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var runs []TrialRun
	err := c.DB.
		Where("participant_id = ?", participantID).
		Order("stimulus_number, trial_number, id").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("listing trials: %w", err)
	}
	return runs, nil
}
