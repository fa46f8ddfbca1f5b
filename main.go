package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"

	"clickpulse/database"
	"clickpulse/internal/config"
	pipelineapp "clickpulse/internal/pipeline/application"
	shareddomain "clickpulse/internal/shared/domain"
)

func main() {
	var (
		tag          = flag.String("tag", "", "tag du run (généré si vide)")
		dataPath     = flag.String("data", "", "chemin du CSV d'événements (défaut: DATA_PATH)")
		outputDir    = flag.String("output", "", "répertoire des artefacts (défaut: OUTPUT_DIR)")
		source       = flag.String("source", "csv", "source des événements: csv ou postgres")
		skipClean    = flag.Bool("skip-clean", false, "réutilise cleaned_events.csv du tag")
		skipFeatures = flag.Bool("skip-features", false, "réutilise les tables de features du tag")
		baseline     = flag.String("baseline", "", "chemin du summary JSON d'un run précédent")
		verbose      = flag.Bool("v", false, "logs de debug")
	)
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}

	runTag := *tag
	if runTag == "" {
		runTag = xid.New().String()
	}

	eventSource, cleanup, err := buildSource(*source, cfg)
	if err != nil {
		log.WithError(err).Fatal("cannot initialize event source")
	}
	defer cleanup()

	runner := pipelineapp.NewRunner(cfg, eventSource)
	result, err := runner.Run(pipelineapp.Options{
		Tag:          runTag,
		SkipClean:    *skipClean,
		SkipFeatures: *skipFeatures,
		BaselinePath: *baseline,
	})
	if err != nil {
		var stageErr *shareddomain.StageError
		if errors.As(err, &stageErr) {
			log.WithFields(log.Fields{
				"stage":    stageErr.Stage,
				"rows_in":  stageErr.RowsIn,
				"rows_out": stageErr.RowsOut,
			}).WithError(stageErr.Err).Error("pipeline failed")
		} else {
			log.WithError(err).Error("pipeline failed")
		}
		os.Exit(1)
	}

	log.WithFields(log.Fields{
		"tag":     result.Tag,
		"summary": result.SummaryPath,
		"report":  result.ReportPath,
		"package": result.PackagePath,
	}).Info("run artifacts written")
}

// buildSource instancie la source d'événements demandée
func buildSource(kind string, cfg config.Config) (pipelineapp.EventSource, func(), error) {
	switch kind {
	case "csv":
		path := cfg.DataPath
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		return pipelineapp.NewCSVSource(path, cfg.DefaultLocation), func() {}, nil
	case "postgres":
		if err := database.Init(cfg.ConnString()); err != nil {
			return nil, nil, err
		}
		return pipelineapp.NewPostgresSource(database.DB), func() { database.Close() }, nil
	}
	return nil, nil, &config.ConfigError{Field: "source", Reason: "must be csv or postgres"}
}
