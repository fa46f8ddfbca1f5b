package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	eventsapp "clickpulse/internal/events/application"
	eventsdomain "clickpulse/internal/events/domain"
	featapp "clickpulse/internal/features/application"
	"clickpulse/internal/features/domain"
	"clickpulse/internal/testhelpers"
)

// buildFixtureTables produit des tables réalistes via le pipeline amont
func buildFixtureTables(t testing.TB) (domain.Tables, []eventsdomain.CleanedEvent) {
	t.Helper()

	var events []eventsdomain.RawEvent
	for i := 0; i < 10; i++ {
		events = append(events, testhelpers.FunnelSession(
			fmt.Sprintf("u%d", i%3),
			fmt.Sprintf("s%d", i),
			time.Duration(i)*30*time.Minute,
		)...)
	}

	cleaner := eventsapp.NewCleaner(2 * time.Hour)
	cleaned, _ := cleaner.Clean(events)

	tables, err := featapp.NewBuilder(5).Build(cleaned)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tables, cleaned
}

// TestArtifactStore_TablesRoundTrip vérifie que LoadTables restitue
// exactement ce que SaveTables a écrit
func TestArtifactStore_TablesRoundTrip(t *testing.T) {
	tables, _ := buildFixtureTables(t)
	store := NewArtifactStore(t.TempDir(), "run-1")

	if err := store.SaveTables(tables); err != nil {
		t.Fatalf("SaveTables failed: %v", err)
	}

	loaded, err := store.LoadTables()
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}
	if !reflect.DeepEqual(tables, loaded) {
		t.Error("Loaded tables differ from saved tables")
	}
}

// TestArtifactStore_CleanedEventsRoundTrip vérifie l'aller-retour de
// la table d'événements nettoyée
func TestArtifactStore_CleanedEventsRoundTrip(t *testing.T) {
	_, cleaned := buildFixtureTables(t)
	store := NewArtifactStore(t.TempDir(), "run-1")

	if err := store.SaveCleanedEvents(cleaned); err != nil {
		t.Fatalf("SaveCleanedEvents failed: %v", err)
	}

	loaded, err := store.LoadCleanedEvents()
	if err != nil {
		t.Fatalf("LoadCleanedEvents failed: %v", err)
	}
	if !reflect.DeepEqual(cleaned, loaded) {
		t.Error("Loaded cleaned events differ from saved events")
	}
}

// TestArtifactStore_DeterministicOutput vérifie que deux écritures de
// la même table produisent des artefacts octet pour octet identiques
func TestArtifactStore_DeterministicOutput(t *testing.T) {
	tables, _ := buildFixtureTables(t)

	storeA := NewArtifactStore(t.TempDir(), "run-a")
	storeB := NewArtifactStore(t.TempDir(), "run-b")
	if err := storeA.SaveTables(tables); err != nil {
		t.Fatalf("SaveTables failed: %v", err)
	}
	if err := storeB.SaveTables(tables); err != nil {
		t.Fatalf("SaveTables failed: %v", err)
	}

	for _, name := range []string{SessionFeaturesFile, UserFeaturesFile, BrandFeaturesFile, CategoryFeaturesFile} {
		a, err := os.ReadFile(filepath.Join(storeA.Dir(), name))
		if err != nil {
			t.Fatalf("Read %s failed: %v", name, err)
		}
		b, err := os.ReadFile(filepath.Join(storeB.Dir(), name))
		if err != nil {
			t.Fatalf("Read %s failed: %v", name, err)
		}
		if string(a) != string(b) {
			t.Errorf("Artifact %s is not byte-identical across runs", name)
		}
	}
}

// TestArtifactStore_ParquetFilesWritten vérifie la présence des
// artefacts Parquet à côté des CSV
func TestArtifactStore_ParquetFilesWritten(t *testing.T) {
	tables, _ := buildFixtureTables(t)
	store := NewArtifactStore(t.TempDir(), "run-1")

	if err := store.SaveTables(tables); err != nil {
		t.Fatalf("SaveTables failed: %v", err)
	}

	for _, name := range []string{
		"session_features.parquet", "user_features.parquet",
		"brand_features.parquet", "category_features.parquet",
	} {
		info, err := os.Stat(filepath.Join(store.Dir(), name))
		if err != nil {
			t.Errorf("Expected parquet artifact %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("Parquet artifact %s is empty", name)
		}
	}
}

// TestArtifactStore_WriteJSON vérifie l'écriture d'artefacts JSON
func TestArtifactStore_WriteJSON(t *testing.T) {
	store := NewArtifactStore(t.TempDir(), "run-1")

	path, err := store.WriteJSON("summary_run-1.json", map[string]int{"sessions": 3})
	if err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected non-empty JSON artifact")
	}
}

// TestArtifactStore_LoadMissing vérifie l'erreur sur artefacts absents
func TestArtifactStore_LoadMissing(t *testing.T) {
	store := NewArtifactStore(t.TempDir(), "ghost")
	if _, err := store.LoadTables(); err == nil {
		t.Error("Expected error when artifacts are missing")
	}
}
