package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/noospace/noospace/pkg/models"
)

// SQLiteStore implements the Store interface on a local SQLite database.
// Rows are stored as JSON blobs keyed by entity id, with the owning space
// id lifted into an indexed column for the space-scoped tables.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	config SQLiteConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	DBPath      string
	CacheSize   int // Page cache size in KB
	BusyTimeout int // Milliseconds to wait on locked database
}

// DefaultSQLiteConfig returns the settings used when none are given.
func DefaultSQLiteConfig(dbPath string) SQLiteConfig {
	return SQLiteConfig{
		DBPath:      dbPath,
		CacheSize:   2000, // 2MB
		BusyTimeout: 5000, // 5 seconds
	}
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs any
// pending migrations. A failing migration is fatal: the store is not
// returned and the recorded version is left unchanged.
func NewSQLiteStore(dbPath string, config SQLiteConfig) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "noospace.db"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		config: config,
	}

	if err := store.applyPragmas(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA cache_size = -%d", s.config.CacheSize),
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.config.BusyTimeout),
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	return nil
}

// Info returns store information
func (s *SQLiteStore) Info() StoreInfo {
	version, _ := s.Version(context.Background())
	return StoreInfo{
		Type:                "sqlite",
		Version:             "1.0.0",
		SchemaVersion:       version,
		SupportsTransaction: true,
	}
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Begin opens a transaction. The store's write lock is held until Commit
// or Rollback, so one transaction runs at a time.
func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	t := &sqliteTx{tx: tx}
	t.release = func() { s.mu.Unlock() }
	return t, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx runs the same statements as the store against an open
// transaction.
type sqliteTx struct {
	tx      *sql.Tx
	once    sync.Once
	release func()
}

func (t *sqliteTx) Commit() error {
	err := t.tx.Commit()
	t.once.Do(t.release)
	return err
}

func (t *sqliteTx) Rollback() error {
	err := t.tx.Rollback()
	t.once.Do(t.release)
	return err
}

func (t *sqliteTx) Close() error { return nil }

// -----------------------------------------------------------------------------
// Spaces
// -----------------------------------------------------------------------------

func putSpace(ctx context.Context, q querier, space models.Space) error {
	data, err := json.Marshal(space)
	if err != nil {
		return fmt.Errorf("failed to marshal space: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO spaces (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, space.ID, string(data))
	if err != nil {
		return fmt.Errorf("failed to put space: %w", err)
	}
	return nil
}

func getSpace(ctx context.Context, q querier, id string) (models.Space, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM spaces WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return models.Space{}, ErrNotFound
	}
	if err != nil {
		return models.Space{}, fmt.Errorf("failed to query space: %w", err)
	}
	var space models.Space
	if err := json.Unmarshal([]byte(data), &space); err != nil {
		return models.Space{}, fmt.Errorf("failed to unmarshal space: %w", err)
	}
	return space, nil
}

func listSpaces(ctx context.Context, q querier) ([]models.Space, error) {
	rows, err := q.QueryContext(ctx, `SELECT data FROM spaces ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []models.Space
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var space models.Space
		if err := json.Unmarshal([]byte(data), &space); err != nil {
			return nil, fmt.Errorf("failed to unmarshal space: %w", err)
		}
		spaces = append(spaces, space)
	}
	return spaces, rows.Err()
}

func deleteSpace(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete space: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// -----------------------------------------------------------------------------
// Nodes
// -----------------------------------------------------------------------------

func putNode(ctx context.Context, q querier, node models.Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO nodes (id, space_id, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET space_id = excluded.space_id, data = excluded.data
	`, node.ID, node.SpaceID, string(data))
	if err != nil {
		return fmt.Errorf("failed to put node: %w", err)
	}
	return nil
}

func getNode(ctx context.Context, q querier, id string) (models.Node, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM nodes WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return models.Node{}, ErrNotFound
	}
	if err != nil {
		return models.Node{}, fmt.Errorf("failed to query node: %w", err)
	}
	var node models.Node
	if err := json.Unmarshal([]byte(data), &node); err != nil {
		return models.Node{}, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return node, nil
}

func listNodes(ctx context.Context, q querier, spaceID string) ([]models.Node, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT data FROM nodes WHERE space_id = ? ORDER BY rowid
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var node models.Node
		if err := json.Unmarshal([]byte(data), &node); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node: %w", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func deleteNode(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteNodesBySpace(ctx context.Context, q querier, spaceID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM nodes WHERE space_id = ?`, spaceID); err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Edges
// -----------------------------------------------------------------------------

func putEdge(ctx context.Context, q querier, edge models.Edge) error {
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO edges (id, space_id, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET space_id = excluded.space_id, data = excluded.data
	`, edge.ID, edge.SpaceID, string(data))
	if err != nil {
		return fmt.Errorf("failed to put edge: %w", err)
	}
	return nil
}

func getEdge(ctx context.Context, q querier, id string) (models.Edge, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM edges WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return models.Edge{}, ErrNotFound
	}
	if err != nil {
		return models.Edge{}, fmt.Errorf("failed to query edge: %w", err)
	}
	var edge models.Edge
	if err := json.Unmarshal([]byte(data), &edge); err != nil {
		return models.Edge{}, fmt.Errorf("failed to unmarshal edge: %w", err)
	}
	return edge, nil
}

func listEdges(ctx context.Context, q querier, spaceID string) ([]models.Edge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT data FROM edges WHERE space_id = ? ORDER BY rowid
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var edges []models.Edge
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var edge models.Edge
		if err := json.Unmarshal([]byte(data), &edge); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edge: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

func deleteEdge(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteEdgesBySpace(ctx context.Context, q querier, spaceID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM edges WHERE space_id = ?`, spaceID); err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}
	return nil
}

func deleteEdgesTouching(ctx context.Context, q querier, spaceID, nodeID string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM edges
		WHERE space_id = ?
		  AND (json_extract(data, '$.from') = ? OR json_extract(data, '$.to') = ?)
	`, spaceID, nodeID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}
	return nil
}

func edgeExists(ctx context.Context, q querier, spaceID, from, to, relation string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM edges
			WHERE space_id = ?
			  AND json_extract(data, '$.from') = ?
			  AND json_extract(data, '$.to') = ?
			  AND IFNULL(json_extract(data, '$.relation'), '') = ?
		)
	`, spaceID, from, to, relation).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check edge: %w", err)
	}
	return exists, nil
}

// -----------------------------------------------------------------------------
// View state
// -----------------------------------------------------------------------------

func putViewState(ctx context.Context, q querier, view models.ViewState) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal view state: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO space_view_state (space_id, data) VALUES (?, ?)
		ON CONFLICT(space_id) DO UPDATE SET data = excluded.data
	`, view.SpaceID, string(data))
	if err != nil {
		return fmt.Errorf("failed to put view state: %w", err)
	}
	return nil
}

func getViewState(ctx context.Context, q querier, spaceID string) (models.ViewState, error) {
	var data string
	err := q.QueryRowContext(ctx, `
		SELECT data FROM space_view_state WHERE space_id = ?
	`, spaceID).Scan(&data)
	if err == sql.ErrNoRows {
		return models.ViewState{}, ErrNotFound
	}
	if err != nil {
		return models.ViewState{}, fmt.Errorf("failed to query view state: %w", err)
	}
	var view models.ViewState
	if err := json.Unmarshal([]byte(data), &view); err != nil {
		return models.ViewState{}, fmt.Errorf("failed to unmarshal view state: %w", err)
	}
	return view, nil
}

func deleteViewState(ctx context.Context, q querier, spaceID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM space_view_state WHERE space_id = ?`, spaceID); err != nil {
		return fmt.Errorf("failed to delete view state: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Settings
// -----------------------------------------------------------------------------

func getSettings(ctx context.Context, q querier) (models.AppSettings, error) {
	var data string
	err := q.QueryRowContext(ctx, `
		SELECT data FROM app_settings WHERE key = ?
	`, models.SettingsKey).Scan(&data)
	if err == sql.ErrNoRows {
		return models.AppSettings{}, ErrNotFound
	}
	if err != nil {
		return models.AppSettings{}, fmt.Errorf("failed to query settings: %w", err)
	}
	var settings models.AppSettings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return models.AppSettings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return settings, nil
}

func putSettings(ctx context.Context, q querier, settings models.AppSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO app_settings (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data
	`, models.SettingsKey, string(data))
	if err != nil {
		return fmt.Errorf("failed to put settings: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Store methods: lock, then delegate to the shared statements
// -----------------------------------------------------------------------------

func (s *SQLiteStore) PutSpace(ctx context.Context, space models.Space) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putSpace(ctx, s.db, space)
}

func (s *SQLiteStore) GetSpace(ctx context.Context, id string) (models.Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSpace(ctx, s.db, id)
}

func (s *SQLiteStore) ListSpaces(ctx context.Context) ([]models.Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSpaces(ctx, s.db)
}

func (s *SQLiteStore) DeleteSpace(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteSpace(ctx, s.db, id)
}

func (s *SQLiteStore) PutNode(ctx context.Context, node models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putNode(ctx, s.db, node)
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getNode(ctx, s.db, id)
}

func (s *SQLiteStore) ListNodes(ctx context.Context, spaceID string) ([]models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listNodes(ctx, s.db, spaceID)
}

func (s *SQLiteStore) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteNode(ctx, s.db, id)
}

func (s *SQLiteStore) DeleteNodesBySpace(ctx context.Context, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteNodesBySpace(ctx, s.db, spaceID)
}

func (s *SQLiteStore) PutEdge(ctx context.Context, edge models.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putEdge(ctx, s.db, edge)
}

func (s *SQLiteStore) GetEdge(ctx context.Context, id string) (models.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEdge(ctx, s.db, id)
}

func (s *SQLiteStore) ListEdges(ctx context.Context, spaceID string) ([]models.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEdges(ctx, s.db, spaceID)
}

func (s *SQLiteStore) DeleteEdge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEdge(ctx, s.db, id)
}

func (s *SQLiteStore) DeleteEdgesBySpace(ctx context.Context, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEdgesBySpace(ctx, s.db, spaceID)
}

func (s *SQLiteStore) DeleteEdgesTouching(ctx context.Context, spaceID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEdgesTouching(ctx, s.db, spaceID, nodeID)
}

func (s *SQLiteStore) EdgeExists(ctx context.Context, spaceID, from, to, relation string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return edgeExists(ctx, s.db, spaceID, from, to, relation)
}

func (s *SQLiteStore) PutViewState(ctx context.Context, view models.ViewState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putViewState(ctx, s.db, view)
}

func (s *SQLiteStore) GetViewState(ctx context.Context, spaceID string) (models.ViewState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getViewState(ctx, s.db, spaceID)
}

func (s *SQLiteStore) DeleteViewState(ctx context.Context, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteViewState(ctx, s.db, spaceID)
}

func (s *SQLiteStore) GetSettings(ctx context.Context) (models.AppSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSettings(ctx, s.db)
}

func (s *SQLiteStore) PutSettings(ctx context.Context, settings models.AppSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putSettings(ctx, s.db, settings)
}

// -----------------------------------------------------------------------------
// Tx methods: the transaction already holds the store lock
// -----------------------------------------------------------------------------

func (t *sqliteTx) PutSpace(ctx context.Context, space models.Space) error {
	return putSpace(ctx, t.tx, space)
}

func (t *sqliteTx) GetSpace(ctx context.Context, id string) (models.Space, error) {
	return getSpace(ctx, t.tx, id)
}

func (t *sqliteTx) ListSpaces(ctx context.Context) ([]models.Space, error) {
	return listSpaces(ctx, t.tx)
}

func (t *sqliteTx) DeleteSpace(ctx context.Context, id string) error {
	return deleteSpace(ctx, t.tx, id)
}

func (t *sqliteTx) PutNode(ctx context.Context, node models.Node) error {
	return putNode(ctx, t.tx, node)
}

func (t *sqliteTx) GetNode(ctx context.Context, id string) (models.Node, error) {
	return getNode(ctx, t.tx, id)
}

func (t *sqliteTx) ListNodes(ctx context.Context, spaceID string) ([]models.Node, error) {
	return listNodes(ctx, t.tx, spaceID)
}

func (t *sqliteTx) DeleteNode(ctx context.Context, id string) error {
	return deleteNode(ctx, t.tx, id)
}

func (t *sqliteTx) DeleteNodesBySpace(ctx context.Context, spaceID string) error {
	return deleteNodesBySpace(ctx, t.tx, spaceID)
}

func (t *sqliteTx) PutEdge(ctx context.Context, edge models.Edge) error {
	return putEdge(ctx, t.tx, edge)
}

func (t *sqliteTx) GetEdge(ctx context.Context, id string) (models.Edge, error) {
	return getEdge(ctx, t.tx, id)
}

func (t *sqliteTx) ListEdges(ctx context.Context, spaceID string) ([]models.Edge, error) {
	return listEdges(ctx, t.tx, spaceID)
}

func (t *sqliteTx) DeleteEdge(ctx context.Context, id string) error {
	return deleteEdge(ctx, t.tx, id)
}

func (t *sqliteTx) DeleteEdgesBySpace(ctx context.Context, spaceID string) error {
	return deleteEdgesBySpace(ctx, t.tx, spaceID)
}

func (t *sqliteTx) DeleteEdgesTouching(ctx context.Context, spaceID, nodeID string) error {
	return deleteEdgesTouching(ctx, t.tx, spaceID, nodeID)
}

func (t *sqliteTx) EdgeExists(ctx context.Context, spaceID, from, to, relation string) (bool, error) {
	return edgeExists(ctx, t.tx, spaceID, from, to, relation)
}

func (t *sqliteTx) PutViewState(ctx context.Context, view models.ViewState) error {
	return putViewState(ctx, t.tx, view)
}

func (t *sqliteTx) GetViewState(ctx context.Context, spaceID string) (models.ViewState, error) {
	return getViewState(ctx, t.tx, spaceID)
}

func (t *sqliteTx) DeleteViewState(ctx context.Context, spaceID string) error {
	return deleteViewState(ctx, t.tx, spaceID)
}

func (t *sqliteTx) GetSettings(ctx context.Context) (models.AppSettings, error) {
	return getSettings(ctx, t.tx)
}

func (t *sqliteTx) PutSettings(ctx context.Context, settings models.AppSettings) error {
	return putSettings(ctx, t.tx, settings)
}
