// Package platform resolves what a node can do from its configured
// environment: where its files live and whether it owns a database.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/busstats/internal/config"
	"github.com/roach88/busstats/internal/store"
)

// ErrNoDatabase is returned when a command needs the durable store on a
// node that has none.
var ErrNoDatabase = errors.New("no durable store on this node")

// PathConfig locates the files of a node.
type PathConfig interface {
	StagingPath() string
	LogFile() string
}

// DatabaseAccess opens the durable store. The caller closes it.
type DatabaseAccess interface {
	Open() (*store.Store, error)
}

// Platform bundles the resolved capabilities of a node.
type Platform struct {
	Environment config.Environment
	Paths       PathConfig
	Database    DatabaseAccess
}

// Require fails unless the node runs in env.
func (p Platform) Require(env config.Environment) error {
	if p.Environment != env {
		return fmt.Errorf("command requires the %s environment, this node is %s", env, p.Environment)
	}
	return nil
}

// Resolve builds the Platform for cfg. Empty paths default to files under
// the user data directory.
func Resolve(cfg config.Config) (Platform, error) {
	base, err := dataDir()
	if err != nil {
		return Platform{}, err
	}

	paths := filePaths{
		staging: orDefault(cfg.Paths.Staging, filepath.Join(base, "data.csv")),
		logFile: cfg.Paths.LogFile,
	}

	switch cfg.Environment {
	case config.Collector:
		return Platform{Environment: cfg.Environment, Paths: paths, Database: noDatabase{}}, nil
	case config.Storage:
		db := sqliteAccess{path: orDefault(cfg.Paths.Database, filepath.Join(base, "busstats.db"))}
		return Platform{Environment: cfg.Environment, Paths: paths, Database: db}, nil
	default:
		return Platform{}, fmt.Errorf("unknown environment %q", cfg.Environment)
	}
}

func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "busstats"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate data directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "busstats"), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type filePaths struct {
	staging string
	logFile string
}

func (p filePaths) StagingPath() string { return p.staging }
func (p filePaths) LogFile() string     { return p.logFile }

type sqliteAccess struct {
	path string
}

func (a sqliteAccess) Open() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	s, err := store.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.path, err)
	}
	return s, nil
}

type noDatabase struct{}

func (noDatabase) Open() (*store.Store, error) {
	return nil, ErrNoDatabase
}
