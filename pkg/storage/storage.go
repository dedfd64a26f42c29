// Package storage keeps provisioned settings on flash using LittleFS.
// It handles atomic writes, version checking, and cleanup of temporary files.
// Message history is never written here.
package storage

import (
	"errors"
	"os"
	"path"
	"strings"

	"github.com/tuffrabit/tinygo-js8-display/pkg/config"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	configDir    = "/config"
	settingsFile = "/config/settings.bin"
	tempSuffix   = ".tmp"
)

var (
	ErrNotFound        = errors.New("settings not found")
	ErrInvalidSettings = errors.New("invalid settings data")
	ErrVersionMismatch = errors.New("settings version mismatch")
)

// Manager handles settings persistence using LittleFS.
type Manager struct {
	fs       *littlefs.LFS
	blockDev tinyfs.BlockDevice
	mounted  bool
}

// Stats provides information about storage usage.
type Stats struct {
	TotalSpace  int64
	UsedSpace   int64
	FreeSpace   int64
	HasSettings bool
}

// New initializes the storage system with the given block device.
// It mounts the filesystem and performs boot-time cleanup.
// If format is true and mount fails, it will format the filesystem.
func New(blockDev tinyfs.BlockDevice, format bool) (*Manager, error) {
	lfs := littlefs.New(blockDev)

	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	err := lfs.Mount()
	if err != nil {
		if !format {
			return nil, err
		}
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		fs:       lfs,
		blockDev: blockDev,
		mounted:  true,
	}

	// Leftover temp files are harmless; keep going if cleanup fails.
	_ = m.bootCleanup()

	// Settings from another firmware's layout are unusable; drop them so the
	// compiled-in defaults apply until the device is provisioned again.
	if stale, err := m.checkVersion(); err == nil && stale {
		if err := m.Wipe(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	if m.mounted {
		m.mounted = false
		return m.fs.Unmount()
	}
	return nil
}

// bootCleanup removes temporary files left over from interrupted writes.
func (m *Manager) bootCleanup() error {
	entries, err := m.readDir(configDir)
	if err != nil {
		// Nothing has been saved yet
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, tempSuffix) {
			m.fs.Remove(path.Join(configDir, name))
		}
	}
	return nil
}

// readDir reads the directory entries at the given path.
func (m *Manager) readDir(dirPath string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDir() {
		return nil, errors.New("not a directory")
	}

	return f.Readdir(-1)
}

// checkVersion reports whether stored settings carry another format version.
func (m *Manager) checkVersion() (bool, error) {
	raw, err := m.readSettings()
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return raw.Version != config.CurrentVersion, nil
}

// ensureDirs creates the config directory if it doesn't exist.
func (m *Manager) ensureDirs() error {
	if err := m.fs.Mkdir(configDir, 0755); err != nil && !isExist(err) {
		return err
	}
	return nil
}

// isExist checks if an error is "already exists".
// LittleFS errors don't always match os.IsExist, so we check the message too.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// readSettings loads the stored bytes without checking version or validity.
func (m *Manager) readSettings() (config.Settings, error) {
	var s config.Settings

	f, err := m.fs.Open(settingsFile)
	if err != nil {
		return s, ErrNotFound
	}
	defer f.Close()

	buf := make([]byte, config.Size)
	n, err := f.Read(buf)
	if err != nil {
		return s, err
	}
	if n != config.Size {
		return s, ErrInvalidSettings
	}

	if err := s.UnmarshalBinary(buf); err != nil {
		return s, ErrInvalidSettings
	}
	return s, nil
}

// LoadSettings loads the stored settings.
func (m *Manager) LoadSettings(s *config.Settings) error {
	loaded, err := m.readSettings()
	if err != nil {
		return err
	}
	if loaded.Version != config.CurrentVersion {
		return ErrVersionMismatch
	}
	*s = loaded
	return nil
}

// SaveSettings validates and saves the settings atomically.
func (m *Manager) SaveSettings(s *config.Settings) error {
	s.Version = config.CurrentVersion
	if err := s.Validate(); err != nil {
		return err
	}

	if err := m.ensureDirs(); err != nil {
		return err
	}

	data, err := s.MarshalBinary()
	if err != nil {
		return err
	}

	return m.atomicWrite(settingsFile, data)
}

// Resolve returns the stored settings when they load and validate, otherwise
// defaults. The error explains why defaults were used and is nil when nothing
// was stored.
func (m *Manager) Resolve(defaults config.Settings) (config.Settings, error) {
	var s config.Settings
	if err := m.LoadSettings(&s); err != nil {
		if err == ErrNotFound {
			return defaults, nil
		}
		return defaults, err
	}
	if err := s.Validate(); err != nil {
		return defaults, err
	}
	return s, nil
}

// HasSettings checks if settings have been stored.
func (m *Manager) HasSettings() bool {
	f, err := m.fs.Open(settingsFile)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Wipe removes the stored settings. Missing settings are not an error.
func (m *Manager) Wipe() error {
	if !m.HasSettings() {
		return nil
	}
	return m.fs.Remove(settingsFile)
}

// GetStats returns storage statistics.
func (m *Manager) GetStats() (*Stats, error) {
	has := m.HasSettings()

	// Settings file: 152 bytes data + ~32 bytes LittleFS overhead, plus the
	// directory entry.
	used := int64(100)
	if has {
		used += config.Size + 32
	}

	total := m.blockDev.Size()

	return &Stats{
		TotalSpace:  total,
		UsedSpace:   used,
		FreeSpace:   total - used,
		HasSettings: has,
	}, nil
}

// atomicWrite writes data to a temporary file, syncs it, then renames.
// The original file is never in a partially written state.
func (m *Manager) atomicWrite(filepath string, data []byte) error {
	tempPath := filepath + tempSuffix

	m.fs.Remove(tempPath)

	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		m.fs.Remove(tempPath)
		return err
	}

	// Sync ensures data hits flash
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			m.fs.Remove(tempPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	// LittleFS rename doesn't replace
	m.fs.Remove(filepath)

	if err := m.fs.Rename(tempPath, filepath); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	return nil
}
