// Command seed loads a support-ticket dataset (JSON Lines) into the database.
//
// Each input line is one JSON object with the dataset's column names (subject,
// body, answer, type, queue, priority, language, tag_1..tag_8). Records that
// fail validation or the language filter are skipped and counted, not fatal.
//
// Usage:
//
//	seed -file dataset.jsonl [-db app.db] [-lang en] [-limit 0]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-support-backend/internal/config"
	"github.com/tbourn/go-support-backend/internal/repo"
	"github.com/tbourn/go-support-backend/internal/services"
	"github.com/tbourn/go-support-backend/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	var (
		file  = flag.String("file", "", "path to the JSONL dataset (required)")
		dbp   = flag.String("db", cfg.DBPath, "path to the SQLite database")
		lang  = flag.String("lang", cfg.ImportLanguage, "language filter (empty accepts all)")
		limit = flag.Int("limit", 0, "max records to import (0 = all)")
	)
	flag.Parse()

	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *file == "" {
		flag.Usage()
		log.Fatal().Msg("-file is required")
	}

	db, err := repo.OpenSQLite(*dbp)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbp).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	records, bad, err := readRecords(*file, *limit)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("read dataset")
	}
	log.Info().Int("records", len(records)).Int("malformed", bad).Msg("dataset parsed")

	svc := services.NewImportService(db, strings.TrimSpace(*lang))
	start := time.Now()
	sum := svc.ImportAll(context.Background(), records)

	log.Info().
		Int("imported", sum.Imported).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Dur("took", time.Since(start)).
		Msg("import finished")
}

// readRecords parses up to limit JSONL records from path. Malformed lines are
// counted and skipped.
func readRecords(path string, limit int) ([]services.ImportRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var (
		records []services.ImportRecord
		bad     int
	)
	sc := bufio.NewScanner(f)
	// Dataset bodies can be long; allow lines up to 1 MiB.
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec services.ImportRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			bad++
			continue
		}
		records = append(records, rec)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, bad, err
	}
	return records, bad, nil
}
