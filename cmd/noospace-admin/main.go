package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noospace/noospace/pkg/codec"
	"github.com/noospace/noospace/pkg/ident"
	"github.com/noospace/noospace/pkg/storage"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	dbPath := os.Args[2]

	var err error
	switch cmd {
	case "migrate":
		err = migrate(dbPath)
	case "export":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		spaceID := ""
		if len(os.Args) > 4 {
			spaceID = os.Args[4]
		}
		err = export(dbPath, os.Args[3], spaceID)
	case "import":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		err = importFile(dbPath, os.Args[3])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Println("Usage: noospace-admin <command> <db-path> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate <db>                   Apply pending schema migrations")
	fmt.Println("  export  <db> <file> [spaceID]  Export everything (or one space) to JSON")
	fmt.Println("  import  <db> <file>            Import a JSON export into the database")
	fmt.Println()
	fmt.Println("Example: noospace-admin export ./noospace.db backup.json")
}

func migrate(dbPath string) error {
	ctx := context.Background()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Printf("Database does not exist, creating: %s\n", dbPath)
	}

	// NewSQLiteStore runs pending migrations on open.
	st, err := storage.NewSQLiteStore(dbPath, storage.DefaultSQLiteConfig(dbPath))
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer st.Close()

	version, err := st.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	fmt.Printf("Schema is at version %d\n", version)
	return nil
}

func export(dbPath, outFile, spaceID string) error {
	ctx := context.Background()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database does not exist: %s", dbPath)
	}

	st, err := storage.NewSQLiteStore(dbPath, storage.DefaultSQLiteConfig(dbPath))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	now := time.Now().UnixMilli()
	var env codec.Envelope
	if spaceID == "" {
		env, err = codec.ExportAll(ctx, st, now)
	} else {
		env, err = codec.ExportSpace(ctx, st, spaceID, now)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outFile, err)
	}

	fmt.Printf("Exported %d spaces, %d nodes, %d edges to %s\n",
		len(env.Spaces), len(env.Nodes), len(env.Edges), outFile)
	return nil
}

func importFile(dbPath, inFile string) error {
	ctx := context.Background()

	data, err := os.ReadFile(inFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", inFile, err)
	}

	env, err := codec.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", inFile, err)
	}

	st, err := storage.NewSQLiteStore(dbPath, storage.DefaultSQLiteConfig(dbPath))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	tx, err := st.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := codec.Import(ctx, tx, ident.NewUUIDGenerator(), env, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	fmt.Printf("Imported %d spaces, %d nodes, %d edges\n",
		result.SpacesAdded, result.NodesAdded, result.EdgesAdded)
	return nil
}
