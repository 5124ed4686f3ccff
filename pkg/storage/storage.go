package storage

import (
	"context"
	"errors"

	"github.com/noospace/noospace/pkg/models"
)

var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")
	// ErrMigrationFailed is returned when an upgrade pass cannot complete.
	// The stored version is left unchanged so the next start retries.
	ErrMigrationFailed = errors.New("migration failed")
)

// Store is the persistent table set: spaces, nodes, edges, view state and
// the settings singleton. Put operations are upserts; list operations
// return rows in insertion order, which is the store's default ordering.
type Store interface {
	// Spaces
	PutSpace(ctx context.Context, space models.Space) error
	GetSpace(ctx context.Context, id string) (models.Space, error)
	ListSpaces(ctx context.Context) ([]models.Space, error)
	DeleteSpace(ctx context.Context, id string) error

	// Nodes, index-assisted by owning space
	PutNode(ctx context.Context, node models.Node) error
	GetNode(ctx context.Context, id string) (models.Node, error)
	ListNodes(ctx context.Context, spaceID string) ([]models.Node, error)
	DeleteNode(ctx context.Context, id string) error
	DeleteNodesBySpace(ctx context.Context, spaceID string) error

	// Edges
	PutEdge(ctx context.Context, edge models.Edge) error
	GetEdge(ctx context.Context, id string) (models.Edge, error)
	ListEdges(ctx context.Context, spaceID string) ([]models.Edge, error)
	DeleteEdge(ctx context.Context, id string) error
	DeleteEdgesBySpace(ctx context.Context, spaceID string) error
	DeleteEdgesTouching(ctx context.Context, spaceID, nodeID string) error
	EdgeExists(ctx context.Context, spaceID, from, to, relation string) (bool, error)

	// View state, one record per space
	PutViewState(ctx context.Context, view models.ViewState) error
	GetViewState(ctx context.Context, spaceID string) (models.ViewState, error)
	DeleteViewState(ctx context.Context, spaceID string) error

	// Settings singleton
	GetSettings(ctx context.Context) (models.AppSettings, error)
	PutSettings(ctx context.Context, settings models.AppSettings) error

	// Lifecycle
	Close() error
}

// Transactional is implemented by stores that support transactions.
// Multi-table operations (cascading deletes, seeding, import) must run
// through one.
type Transactional interface {
	Store
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a storage transaction. It exposes the full Store surface; writes
// become visible only on Commit.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Migrator defines schema migration support
type Migrator interface {
	Migrate(ctx context.Context) error
	Version(ctx context.Context) (int, error)
}

// StoreInfo provides metadata about the store implementation
type StoreInfo struct {
	Type                string // "sqlite", ...
	Version             string
	SchemaVersion       int
	SupportsTransaction bool
}

// InfoProvider allows stores to provide metadata about their capabilities
type InfoProvider interface {
	Info() StoreInfo
}
