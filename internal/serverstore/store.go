// Package serverstore persists server configurations for the session core.
//
// A Server record describes one SSH destination the user has saved: host,
// port, username, key path, and an administrative lock flag. Sessions hold
// only the server ID; the record itself is owned here.
package serverstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrServerNotFound is returned when a lookup references a server ID that
// is no longer in the store.
var ErrServerNotFound = errors.New("server not found")

// Server is a saved SSH destination.
type Server struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	Host      string `gorm:"not null" json:"host"`
	Port      int    `gorm:"default:22" json:"port"`
	Username  string `json:"username"`
	KeyPath   string `json:"key_path"`
	Locked    bool   `gorm:"default:false" json:"locked"`
	SortOrder int    `gorm:"default:0" json:"sort_order"`
}

// Store provides access to saved server records.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&Server{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store, used by tests.
func OpenMemory() (*Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	if err := db.AutoMigrate(&Server{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying gorm handle for collaborators that share the
// database file (audit log).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create saves a new server record. An empty ID is assigned a fresh UUID.
func (s *Store) Create(srv *Server) error {
	if srv.ID == "" {
		srv.ID = uuid.New().String()
	}
	if srv.Port == 0 {
		srv.Port = 22
	}
	if err := s.db.Create(srv).Error; err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return nil
}

// Get returns the server with the given ID.
func (s *Store) Get(id string) (*Server, error) {
	var srv Server
	err := s.db.First(&srv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get server %s: %w", id, err)
	}
	return &srv, nil
}

// List returns all servers ordered by sort order, then name.
func (s *Store) List() ([]Server, error) {
	var servers []Server
	if err := s.db.Order("sort_order, name").Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	return servers, nil
}

// Update saves changes to an existing server record.
func (s *Store) Update(srv *Server) error {
	if err := s.db.Save(srv).Error; err != nil {
		return fmt.Errorf("update server: %w", err)
	}
	return nil
}

// Delete removes the server with the given ID.
func (s *Store) Delete(id string) error {
	res := s.db.Delete(&Server{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete server %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrServerNotFound
	}
	return nil
}

// SetLocked updates the administrative lock flag on a server.
func (s *Store) SetLocked(id string, locked bool) error {
	res := s.db.Model(&Server{}).Where("id = ?", id).Update("locked", locked)
	if res.Error != nil {
		return fmt.Errorf("set locked on server %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrServerNotFound
	}
	return nil
}
