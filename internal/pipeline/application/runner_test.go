package application

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clickpulse/internal/config"
	featinfra "clickpulse/internal/features/infrastructure"
	shareddomain "clickpulse/internal/shared/domain"
	"clickpulse/internal/testhelpers"
)

// pipelineFixtureCSV produit un CSV brut avec quelques tunnels complets,
// un panier abandonné et une ligne invalide
func pipelineFixtureCSV() string {
	var b strings.Builder
	b.WriteString("user_id,user_session,event_type,product_id,brand,category_code,price,event_time\n")

	base := testhelpers.BaseTime
	row := func(user, session, eventType string, price float64, at time.Time) {
		fmt.Fprintf(&b, "%s,%s,%s,prod-1,samsung,electronics.smartphone,%.2f,%s\n",
			user, session, eventType, price, at.Format("2006-01-02 15:04:05 MST"))
	}

	for i := 0; i < 3; i++ {
		user := fmt.Sprintf("u%d", i)
		session := fmt.Sprintf("s%d", i)
		start := base.Add(time.Duration(i) * 20 * time.Minute)
		row(user, session, "view", 100, start)
		row(user, session, "cart", 100, start.Add(time.Minute))
		row(user, session, "purchase", 100, start.Add(2*time.Minute))
	}

	// Panier abandonné
	row("u9", "s9", "view", 50, base.Add(time.Hour))
	row("u9", "s9", "cart", 50, base.Add(time.Hour+time.Minute))

	// Type d'événement inconnu: la ligne doit être écartée
	row("u9", "s9", "click", 50, base.Add(time.Hour+2*time.Minute))

	return b.String()
}

func pipelineConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	return cfg
}

// TestRunner_Run_FullPipeline vérifie un run complet depuis un CSV
func TestRunner_Run_FullPipeline(t *testing.T) {
	cfg := pipelineConfig(t)
	csvPath := testhelpers.WriteCSVFixture(t, pipelineFixtureCSV())

	runner := NewRunner(cfg, NewCSVSource(csvPath, cfg.DefaultLocation))
	result, err := runner.Run(Options{Tag: "run-1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Tag != "run-1" {
		t.Errorf("Expected tag run-1, got %s", result.Tag)
	}
	if len(result.Tables.Sessions) != 4 {
		t.Errorf("Expected 4 sessions, got %d", len(result.Tables.Sessions))
	}
	if len(result.Tables.Users) != 4 {
		t.Errorf("Expected 4 users, got %d", len(result.Tables.Users))
	}
	if result.DropReport.UnknownType != 1 {
		t.Errorf("Expected 1 unknown type drop, got %d", result.DropReport.UnknownType)
	}
	if len(result.Summary.Insights) == 0 {
		t.Error("Expected at least one insight")
	}

	// Tous les artefacts du run existent sous <output>/<tag>/
	runDir := filepath.Join(cfg.OutputDir, "run-1")
	artifacts := []string{
		featinfra.CleanedEventsFile,
		featinfra.SessionFeaturesFile,
		featinfra.UserFeaturesFile,
		featinfra.BrandFeaturesFile,
		featinfra.CategoryFeaturesFile,
		SummaryFileName("run-1"),
		"report_run-1.xlsx",
		"package_run-1.json.gz",
	}
	for _, name := range artifacts {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Errorf("Missing artifact %s: %v", name, err)
		}
	}

	if result.SummaryPath != filepath.Join(runDir, SummaryFileName("run-1")) {
		t.Errorf("Unexpected summary path %s", result.SummaryPath)
	}
}

// TestRunner_Run_SkipClean vérifie la réutilisation des événements nettoyés
func TestRunner_Run_SkipClean(t *testing.T) {
	cfg := pipelineConfig(t)
	csvPath := testhelpers.WriteCSVFixture(t, pipelineFixtureCSV())

	runner := NewRunner(cfg, NewCSVSource(csvPath, cfg.DefaultLocation))
	first, err := runner.Run(Options{Tag: "run-1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// La source CSV disparaît: le rerun doit passer par les artefacts
	if err := os.Remove(csvPath); err != nil {
		t.Fatal(err)
	}
	second, err := runner.Run(Options{Tag: "run-1", SkipClean: true})
	if err != nil {
		t.Fatalf("Run with SkipClean failed: %v", err)
	}
	if len(second.Tables.Sessions) != len(first.Tables.Sessions) {
		t.Errorf("Expected %d sessions, got %d",
			len(first.Tables.Sessions), len(second.Tables.Sessions))
	}
	// Le rapport de drops ne couvre que les étapes rejouées
	if second.DropReport.Total() != 0 {
		t.Errorf("Expected no drops on skip-clean rerun, got %d", second.DropReport.Total())
	}
}

// TestRunner_Run_SkipFeatures vérifie la réutilisation des tables de features
func TestRunner_Run_SkipFeatures(t *testing.T) {
	cfg := pipelineConfig(t)
	csvPath := testhelpers.WriteCSVFixture(t, pipelineFixtureCSV())

	runner := NewRunner(cfg, NewCSVSource(csvPath, cfg.DefaultLocation))
	first, err := runner.Run(Options{Tag: "run-1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if err := os.Remove(csvPath); err != nil {
		t.Fatal(err)
	}
	second, err := runner.Run(Options{Tag: "run-1", SkipFeatures: true})
	if err != nil {
		t.Fatalf("Run with SkipFeatures failed: %v", err)
	}
	if len(second.Tables.Users) != len(first.Tables.Users) {
		t.Errorf("Expected %d users, got %d",
			len(first.Tables.Users), len(second.Tables.Users))
	}
}

// TestRunner_Run_Baseline vérifie le branchement de la comparaison de runs
func TestRunner_Run_Baseline(t *testing.T) {
	cfg := pipelineConfig(t)
	csvPath := testhelpers.WriteCSVFixture(t, pipelineFixtureCSV())
	runner := NewRunner(cfg, NewCSVSource(csvPath, cfg.DefaultLocation))

	first, err := runner.Run(Options{Tag: "run-1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Même données: aucun drop d'indicateur, donc aucune alerte
	second, err := runner.Run(Options{Tag: "run-2", BaselinePath: first.SummaryPath})
	if err != nil {
		t.Fatalf("Run with baseline failed: %v", err)
	}
	for _, insight := range second.Summary.Insights {
		if insight.Name == "conversion_drop" || insight.Name == "revenue_drop" {
			t.Errorf("Unexpected regression alert %s on identical data", insight.Name)
		}
	}
}

// TestRunner_Run_MissingSource vérifie l'étiquetage de l'étape fautive
func TestRunner_Run_MissingSource(t *testing.T) {
	cfg := pipelineConfig(t)
	runner := NewRunner(cfg, NewCSVSource("/nonexistent/events.csv", cfg.DefaultLocation))

	_, err := runner.Run(Options{Tag: "run-1"})
	if err == nil {
		t.Fatal("Expected error for missing source")
	}
	var stageErr *shareddomain.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Expected StageError, got %T", err)
	}
	if stageErr.Stage != StageLoad {
		t.Errorf("Expected stage %s, got %s", StageLoad, stageErr.Stage)
	}
}

// TestRunner_Run_MissingArtifacts vérifie le saut sans artefacts préexistants
func TestRunner_Run_MissingArtifacts(t *testing.T) {
	cfg := pipelineConfig(t)
	csvPath := testhelpers.WriteCSVFixture(t, pipelineFixtureCSV())
	runner := NewRunner(cfg, NewCSVSource(csvPath, cfg.DefaultLocation))

	_, err := runner.Run(Options{Tag: "run-1", SkipFeatures: true})
	if err == nil {
		t.Fatal("Expected error for missing feature tables")
	}
	var stageErr *shareddomain.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Expected StageError, got %T", err)
	}
	if stageErr.Stage != StageFeatures {
		t.Errorf("Expected stage %s, got %s", StageFeatures, stageErr.Stage)
	}
}

// TestRunner_Run_BadBaseline vérifie le rejet d'une baseline illisible
func TestRunner_Run_BadBaseline(t *testing.T) {
	cfg := pipelineConfig(t)
	csvPath := testhelpers.WriteCSVFixture(t, pipelineFixtureCSV())
	runner := NewRunner(cfg, NewCSVSource(csvPath, cfg.DefaultLocation))

	badPath := filepath.Join(t.TempDir(), "baseline.json")
	if err := os.WriteFile(badPath, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := runner.Run(Options{Tag: "run-1", BaselinePath: badPath})
	if err == nil {
		t.Fatal("Expected error for malformed baseline")
	}
}
