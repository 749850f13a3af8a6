// Command ingest backfills the filing inventory outside the scheduled
// pipeline: from CSV metadata exports, or from EDGAR's quarterly
// master index for whole historical years.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/holdiq/holdiq/internal/clients/edgar"
	"github.com/holdiq/holdiq/internal/config"
	"github.com/holdiq/holdiq/internal/database"
	"github.com/holdiq/holdiq/internal/ingest"
	"github.com/holdiq/holdiq/internal/modules/filings"
	"github.com/holdiq/holdiq/pkg/logger"
)

func main() {
	csvPath := flag.String("csv", "", "path to a filing metadata CSV to load")
	masterYear := flag.Int("master-year", 0, "backfill a whole year from the EDGAR master index")
	forms := flag.String("forms", "", "comma-separated form types for master index backfill (empty: the curated tier list)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	if *csvPath == "" && *masterYear == 0 {
		flag.Usage()
		os.Exit(2)
	}

	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileArchive,
		Name:    "holdiq",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repo := filings.NewRepository(db.Conn(), log)

	if *csvPath != "" {
		loader := ingest.NewCSVLoader(repo, log)
		result, err := loader.LoadFile(*csvPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *csvPath).Msg("CSV load failed")
		}
		log.Info().
			Int("rows_read", result.RowsRead).
			Int("rows_upserted", result.RowsUpserted).
			Msg("CSV load finished")
	}

	if *masterYear != 0 {
		client := edgar.NewClient(cfg.EdgarUserAgent, cfg.EdgarRateLimit, log)
		scraper := filings.NewScraperService(client, repo, cfg.DataDir, log)

		formList := edgar.TierForms
		if *forms != "" {
			formList = strings.Split(*forms, ",")
			for i := range formList {
				formList[i] = strings.TrimSpace(formList[i])
			}
		}

		result, err := scraper.ScrapeMasterIndex(context.Background(), *masterYear, formList)
		if err != nil {
			log.Fatal().Err(err).Int("year", *masterYear).Msg("Master index backfill failed")
		}
		log.Info().
			Int("year", *masterYear).
			Int("fetched", result.Fetched).
			Int("upserted", result.Upserted).
			Int("enqueued", result.Enqueued).
			Msg("Master index backfill finished")
	}
}
