package db

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens the SQLite database at dbPath and migrates the schema.
func Open(dbPath string) (*gorm.DB, error) {
	newLogger := gormlogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      false,
			Colorful:                  true,
		},
	)

	gdb, err := gorm.Open(gormlite.Open(dbPath), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := gdb.AutoMigrate(&Instance{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return gdb, nil
}

// InstanceStore persists instance metadata.
type InstanceStore struct {
	db *gorm.DB
}

func NewInstanceStore(gdb *gorm.DB) *InstanceStore {
	return &InstanceStore{db: gdb}
}

// Get returns the installed instance for modpackID, or ok=false if none.
func (s *InstanceStore) Get(modpackID string) (Instance, bool, error) {
	var inst Instance
	err := s.db.Where("modpack_id = ?", modpackID).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Instance{}, false, nil
	}
	if err != nil {
		return Instance{}, false, fmt.Errorf("failed to query instance '%s': %w", modpackID, err)
	}
	return inst, true, nil
}

// Save records a successful install or update of modpackID at version.
func (s *InstanceStore) Save(modpackID, version string, installedAt time.Time) error {
	inst := Instance{ModpackID: modpackID, Version: version, InstalledAt: installedAt}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "modpack_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "installed_at", "updated_at"}),
	}).Create(&inst).Error
	if err != nil {
		return fmt.Errorf("failed to save instance '%s': %w", modpackID, err)
	}
	return nil
}

// Delete removes the instance record; deleting a missing record is not an error.
func (s *InstanceStore) Delete(modpackID string) error {
	if err := s.db.Unscoped().Where("modpack_id = ?", modpackID).Delete(&Instance{}).Error; err != nil {
		return fmt.Errorf("failed to delete instance '%s': %w", modpackID, err)
	}
	return nil
}

// List returns all installed instances.
func (s *InstanceStore) List() ([]Instance, error) {
	var out []Instance
	if err := s.db.Order("modpack_id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return out, nil
}
