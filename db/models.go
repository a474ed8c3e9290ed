package db

import (
	"time"

	"gorm.io/gorm"
)

// Instance records an installed modpack instance
type Instance struct {
	gorm.Model
	ModpackID   string    `gorm:"uniqueIndex"` // Catalog id of the modpack
	Version     string    // Installed modpack version
	InstalledAt time.Time // Time of the last successful install or update
}
