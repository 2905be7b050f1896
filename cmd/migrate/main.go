package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocausal/adapters/postgres"
	"gocausal/domain/core"
	"gocausal/internal/migration"
	"gocausal/internal/modeldef"
	"gocausal/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <database_url> <model_definitions_dir>")
	}

	databaseURL := os.Args[1]
	modelsDir := os.Args[2]

	log.Printf("Importing model definitions from %s", modelsDir)

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}

	repo := postgres.NewModelRepository(db)

	files, err := findDefinitionFiles(modelsDir)
	if err != nil {
		log.Fatalf("Failed to find model definitions: %v", err)
	}
	log.Printf("Found %d model definitions to import", len(files))

	imported := 0
	skipped := 0

	for _, file := range files {
		def, err := modeldef.ParseFile(file)
		if err != nil {
			log.Printf("Failed to load %s: %v", file, err)
			skipped++
			continue
		}

		// Reject definitions the engine could not build
		if _, err := def.Build(false); err != nil {
			log.Printf("Invalid model in %s: %v", file, err)
			skipped++
			continue
		}

		now := time.Now().UTC()
		record := &ports.ModelRecord{
			ID:         core.NewModelID(),
			Name:       def.Name,
			Definition: def,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.Create(ctx, record); err != nil {
			log.Printf("Failed to save model %s: %v", def.Name, err)
			skipped++
			continue
		}

		imported++
		log.Printf("Imported model %s as %s from %s", def.Name, record.ID, filepath.Base(file))
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

func findDefinitionFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !info.IsDir() && (ext == ".yaml" || ext == ".yml" || ext == ".json") {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}
