package data

import (
	"path/filepath"
	"strings"

	"github.com/bedlam520/hype-bridge/internal/biz/repo"
)

// Backend names for the state store
const (
	BackendAuto   = "auto"
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// StateStore persists chat settings and the broadcast ledger
type StateStore interface {
	repo.StateRepo
	repo.LedgerRepo
}

// Repositories contains all repositories
type Repositories struct {
	Message repo.MessageRepo
	State   StateStore
	Content repo.ContentRepo
}

// Options configures NewRepositories
type Options struct {
	StatePath    string
	StateBackend string // auto, json or sqlite
	Content      ContentFiles
	MaxMsgPerMin int
}

// ResolveBackend picks the state backend. "auto" selects SQLite for
// .db/.sqlite paths and JSON otherwise.
func ResolveBackend(backend, path string) string {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendJSON:
		return BackendJSON
	case BackendSQLite:
		return BackendSQLite
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return BackendSQLite
	}
	return BackendJSON
}

// NewStateStore opens the state store for the resolved backend
func NewStateStore(backend, path string) (StateStore, error) {
	if ResolveBackend(backend, path) == BackendSQLite {
		return NewSQLiteStateRepo(path)
	}
	return NewJSONStateRepo(path)
}

// NewRepositories creates all repositories. sender is the transport used
// for outbound messages.
func NewRepositories(sender TextSender, opts Options) (*Repositories, error) {
	state, err := NewStateStore(opts.StateBackend, opts.StatePath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Message: NewThrottledRepo(NewFeishuRepo(sender), opts.MaxMsgPerMin),
		State:   state,
		Content: NewFileContentRepo(opts.Content),
	}, nil
}
