package model

import "time"

// ModpackDescriptor is one entry of the backend catalog.
type ModpackDescriptor struct {
	ID               string `yaml:"id" json:"id"`
	Name             string `yaml:"name" json:"name"`
	Version          string `yaml:"version" json:"version"`
	MinecraftVersion string `yaml:"minecraftVersion" json:"minecraftVersion"`
	Modloader        string `yaml:"modloader" json:"modloader"`
	ModloaderVersion string `yaml:"modloaderVersion" json:"modloaderVersion"`
	ArchiveURL       string `yaml:"archiveUrl,omitempty" json:"archiveUrl,omitempty"`
	// ServerIP is set for connect-only entries (vanilla/paper servers) that ship no archive.
	ServerIP string `yaml:"ip,omitempty" json:"ip,omitempty"`
}

// HasArchive reports whether the entry can be installed, updated or repaired.
func (d ModpackDescriptor) HasArchive() bool {
	return d.ArchiveURL != ""
}

type Status string

const (
	StatusNotInstalled Status = "not_installed"
	StatusInstalled    Status = "installed"
	StatusOutdated     Status = "outdated"
	StatusInstalling   Status = "installing"
	StatusUpdating     Status = "updating"
	StatusLaunching    Status = "launching"
	StatusRepairing    Status = "repairing"
	StatusError        Status = "error"
)

// IsBusy reports whether the status represents an operation in flight.
func (s Status) IsBusy() bool {
	switch s {
	case StatusInstalling, StatusUpdating, StatusLaunching, StatusRepairing:
		return true
	default:
		return false
	}
}

// Progress is the smoothed transfer progress exposed to observers.
type Progress struct {
	DownloadedBytes int64         `json:"downloadedBytes"`
	TotalBytes      int64         `json:"totalBytes"`
	Percentage      float64       `json:"percentage"`
	CurrentSpeed    float64       `json:"currentSpeed"`
	ETA             time.Duration `json:"eta,omitempty"`
	HasETA          bool          `json:"hasEta"`
}

// RuntimeState is the per-modpack view owned by the lifecycle controller.
type RuntimeState struct {
	ModpackID    string   `json:"modpackId"`
	Status       Status   `json:"status"`
	Progress     Progress `json:"progress"`
	ErrorKind    Kind     `json:"errorKind,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// Sample is one raw (done, total) progress report from the game runtime.
type Sample struct {
	Done  int64
	Total int64
}
