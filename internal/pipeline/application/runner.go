package application

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"clickpulse/internal/config"
	deployapp "clickpulse/internal/deploy/application"
	eventsapp "clickpulse/internal/events/application"
	eventsdomain "clickpulse/internal/events/domain"
	featapp "clickpulse/internal/features/application"
	featdomain "clickpulse/internal/features/domain"
	featinfra "clickpulse/internal/features/infrastructure"
	insightapp "clickpulse/internal/insights/application"
	insightdomain "clickpulse/internal/insights/domain"
	reportapp "clickpulse/internal/report/application"
	shareddomain "clickpulse/internal/shared/domain"
)

// Noms des étapes du pipeline, utilisés dans les StageError et les logs
const (
	StageLoad     = "load"
	StageClean    = "clean"
	StageFeatures = "features"
	StageInsights = "insights"
	StageReport   = "report"
	StagePackage  = "package"
)

// reportWorkers nombre de workers pour la construction du rapport
const reportWorkers = 4

// SummaryFileName nom de l'artefact résumé pour un tag donné
func SummaryFileName(tag string) string {
	return fmt.Sprintf("summary_%s.json", tag)
}

// Options paramètre un run du pipeline
type Options struct {
	Tag          string
	SkipClean    bool // réutilise cleaned_events.csv du tag
	SkipFeatures bool // réutilise les tables de features du tag
	BaselinePath string
}

// Result rassemble les sorties d'un run
type Result struct {
	Tag         string
	Tables      featdomain.Tables
	Summary     insightdomain.Summary
	DropReport  eventsdomain.DropReport
	SummaryPath string
	ReportPath  string
	PackagePath string
}

// Runner orchestre les étapes loader → cleaner → features → insights
// et les exports en aval
// Chaque étape loggue ses effectifs entrée/sortie, toute erreur est
// remontée enveloppée dans une StageError nommant l'étape fautive
type Runner struct {
	cfg    config.Config
	source EventSource
}

// NewRunner crée un runner pour la source d'événements donnée
func NewRunner(cfg config.Config, source EventSource) *Runner {
	return &Runner{cfg: cfg, source: source}
}

// Run exécute le pipeline complet sous le tag demandé
func (r *Runner) Run(opts Options) (*Result, error) {
	started := time.Now()
	store := featinfra.NewArtifactStore(r.cfg.OutputDir, opts.Tag)
	result := &Result{Tag: opts.Tag}

	log.WithFields(log.Fields{
		"tag":           opts.Tag,
		"output_dir":    store.Dir(),
		"skip_clean":    opts.SkipClean,
		"skip_features": opts.SkipFeatures,
	}).Info("pipeline run started")

	tables, report, err := r.buildTables(opts, store)
	if err != nil {
		return nil, err
	}
	result.Tables = tables
	result.DropReport = report

	baseline, err := loadBaseline(opts.BaselinePath)
	if err != nil {
		return nil, shareddomain.NewStageError(StageInsights, 0, 0, err)
	}

	summary, err := r.runInsights(tables, baseline)
	if err != nil {
		return nil, err
	}
	result.Summary = summary

	runSummary := insightdomain.RunSummary{
		GeneratedAt: time.Now().UTC(),
		Tag:         opts.Tag,
		DroppedRows: report.Total(),
		Summary:     summary,
	}
	summaryPath, err := store.WriteJSON(SummaryFileName(opts.Tag), runSummary)
	if err != nil {
		return nil, shareddomain.NewStageError(StageInsights, len(tables.Sessions), 0, err)
	}
	result.SummaryPath = summaryPath

	reportPath, err := r.runReport(opts.Tag, store, tables, summary)
	if err != nil {
		return nil, err
	}
	result.ReportPath = reportPath

	packagePath, err := r.runPackage(opts.Tag, store, runSummary, tables, summary)
	if err != nil {
		return nil, err
	}
	result.PackagePath = packagePath

	log.WithFields(log.Fields{
		"tag":      opts.Tag,
		"duration": time.Since(started).String(),
		"sessions": len(tables.Sessions),
		"users":    len(tables.Users),
		"dropped":  report.Total(),
		"insights": len(summary.Insights),
	}).Info("pipeline run completed")

	return result, nil
}

// buildTables produit les tables de features en honorant les flags de saut
func (r *Runner) buildTables(opts Options, store *featinfra.ArtifactStore) (featdomain.Tables, eventsdomain.DropReport, error) {
	var report eventsdomain.DropReport

	if opts.SkipFeatures {
		log.WithField("tag", opts.Tag).Info("reusing existing feature tables")
		tables, err := store.LoadTables()
		if err != nil {
			return featdomain.Tables{}, report, shareddomain.NewStageError(StageFeatures, 0, 0, err)
		}
		return tables, report, nil
	}

	cleaned, report, err := r.buildCleanedEvents(opts, store)
	if err != nil {
		return featdomain.Tables{}, report, err
	}

	builder := featapp.NewBuilder(r.cfg.LoyaltySessionCutoff)
	tables, err := builder.Build(cleaned)
	if err != nil {
		return featdomain.Tables{}, report, shareddomain.NewStageError(StageFeatures, len(cleaned), 0, err)
	}
	if err := store.SaveTables(tables); err != nil {
		return featdomain.Tables{}, report, shareddomain.NewStageError(StageFeatures, len(cleaned), len(tables.Sessions), err)
	}

	log.WithFields(log.Fields{
		"stage":      StageFeatures,
		"events_in":  len(cleaned),
		"sessions":   len(tables.Sessions),
		"users":      len(tables.Users),
		"brands":     len(tables.Brands),
		"categories": len(tables.Categories),
	}).Info("feature tables built")

	return tables, report, nil
}

// buildCleanedEvents charge puis nettoie les événements bruts
func (r *Runner) buildCleanedEvents(opts Options, store *featinfra.ArtifactStore) ([]eventsdomain.CleanedEvent, eventsdomain.DropReport, error) {
	var report eventsdomain.DropReport

	if opts.SkipClean {
		log.WithField("tag", opts.Tag).Info("reusing existing cleaned events")
		cleaned, err := store.LoadCleanedEvents()
		if err != nil {
			return nil, report, shareddomain.NewStageError(StageClean, 0, 0, err)
		}
		return cleaned, report, nil
	}

	raw, report, err := r.source.Events()
	if err != nil {
		return nil, report, shareddomain.NewStageError(StageLoad, 0, 0, err)
	}
	log.WithFields(log.Fields{
		"stage":   StageLoad,
		"rows":    len(raw),
		"dropped": report.Total(),
	}).Info("raw events loaded")

	cleaner := eventsapp.NewCleaner(r.cfg.MaxSessionGap)
	cleaned, cleanReport := cleaner.Clean(raw)
	report = report.Merge(cleanReport)
	log.WithFields(log.Fields{
		"stage":      StageClean,
		"rows_in":    len(raw),
		"rows_out":   len(cleaned),
		"duplicates": cleanReport.DuplicateEvent,
	}).Info("events cleaned")

	if err := store.SaveCleanedEvents(cleaned); err != nil {
		return nil, report, shareddomain.NewStageError(StageClean, len(raw), len(cleaned), err)
	}
	return cleaned, report, nil
}

func (r *Runner) runInsights(tables featdomain.Tables, baseline *insightdomain.RunSummary) (insightdomain.Summary, error) {
	engine := insightapp.NewEngine(r.cfg)
	summary, err := engine.Generate(tables, baseline)
	if err != nil {
		return insightdomain.Summary{}, shareddomain.NewStageError(StageInsights, len(tables.Sessions), 0, err)
	}
	log.WithFields(log.Fields{
		"stage":    StageInsights,
		"insights": len(summary.Insights),
	}).Info("insights generated")
	return summary, nil
}

func (r *Runner) runReport(tag string, store *featinfra.ArtifactStore, tables featdomain.Tables, summary insightdomain.Summary) (string, error) {
	reporter := reportapp.NewExcelReporter(reportWorkers)
	path, err := reporter.Generate(store.Dir(), tag, tables, summary)
	if err != nil {
		return "", shareddomain.NewStageError(StageReport, len(tables.Sessions), 0, err)
	}
	log.WithFields(log.Fields{"stage": StageReport, "path": path}).Info("excel report written")
	return path, nil
}

func (r *Runner) runPackage(tag string, store *featinfra.ArtifactStore, runSummary insightdomain.RunSummary, tables featdomain.Tables, summary insightdomain.Summary) (string, error) {
	builder := deployapp.NewBuilder(store.Dir())
	path, err := builder.Build(tag, runSummary.GeneratedAt, runSummary.DroppedRows, tables, summary)
	if err != nil {
		return "", shareddomain.NewStageError(StagePackage, len(tables.Sessions), 0, err)
	}
	log.WithFields(log.Fields{"stage": StagePackage, "path": path}).Info("deployment package written")
	return path, nil
}

// loadBaseline lit le résumé d'un run précédent pour la comparaison
// Un chemin vide signifie pas de baseline
func loadBaseline(path string) (*insightdomain.RunSummary, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	var baseline insightdomain.RunSummary
	if err := json.Unmarshal(data, &baseline); err != nil {
		return nil, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	return &baseline, nil
}
