package application

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"clickpulse/internal/events/domain"
)

const validHeader = "user_id,user_session,event_type,product_id,brand,category_code,price,event_time"

// TestLoader_Load_ValidRows vérifie le chargement nominal
func TestLoader_Load_ValidRows(t *testing.T) {
	csvData := validHeader + "\n" +
		"u1,s1,view,p1,samsung,electronics.smartphone,129.99,2024-03-05 10:00:00 UTC\n" +
		"u1,s1,purchase,p1,samsung,electronics.smartphone,129.99,2024-03-05 10:05:00 UTC\n"

	loader := NewLoader(time.UTC)
	events, report, err := loader.Load(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if report.Total() != 0 {
		t.Errorf("Expected no drops, got %s", report)
	}

	first := events[0]
	if first.UserID != "u1" || first.SessionID != "s1" || first.Type != domain.EventView {
		t.Errorf("Unexpected first event: %+v", first)
	}
	if first.Price != 129.99 {
		t.Errorf("Expected price 129.99, got %f", first.Price)
	}
	if !first.Time.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected UTC timestamp, got %v", first.Time)
	}
}

// TestLoader_Load_MissingColumn vérifie l'erreur de schéma fatale
func TestLoader_Load_MissingColumn(t *testing.T) {
	csvData := "user_id,event_type,product_id,price,event_time\n" +
		"u1,view,p1,10,2024-03-05 10:00:00 UTC\n"

	loader := NewLoader(time.UTC)
	_, _, err := loader.Load(strings.NewReader(csvData))

	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected SchemaError, got %v", err)
	}
	if len(schemaErr.Missing) != 1 || schemaErr.Missing[0] != "user_session" {
		t.Errorf("Expected missing [user_session], got %v", schemaErr.Missing)
	}
}

// TestLoader_Load_DropReasons vérifie le comptage par motif d'écart
func TestLoader_Load_DropReasons(t *testing.T) {
	csvData := validHeader + "\n" +
		// valide
		"u1,s1,view,p1,samsung,cat,10,2024-03-05 10:00:00 UTC\n" +
		// user_session manquant
		"u2,,view,p1,samsung,cat,10,2024-03-05 10:00:00 UTC\n" +
		// type inconnu
		"u3,s3,click,p1,samsung,cat,10,2024-03-05 10:00:00 UTC\n" +
		// prix négatif
		"u4,s4,view,p1,samsung,cat,-5,2024-03-05 10:00:00 UTC\n" +
		// prix non numérique
		"u5,s5,view,p1,samsung,cat,abc,2024-03-05 10:00:00 UTC\n" +
		// timestamp illisible
		"u6,s6,view,p1,samsung,cat,10,notadate\n"

	loader := NewLoader(time.UTC)
	events, report, err := loader.Load(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(events) != 1 {
		t.Errorf("Expected 1 valid event, got %d", len(events))
	}
	if report.MissingField != 1 {
		t.Errorf("Expected MissingField=1, got %d", report.MissingField)
	}
	if report.UnknownType != 1 {
		t.Errorf("Expected UnknownType=1, got %d", report.UnknownType)
	}
	if report.BadPrice != 2 {
		t.Errorf("Expected BadPrice=2, got %d", report.BadPrice)
	}
	if report.BadTimestamp != 1 {
		t.Errorf("Expected BadTimestamp=1, got %d", report.BadTimestamp)
	}
	if report.Total() != 5 {
		t.Errorf("Expected 5 drops total, got %d", report.Total())
	}
}

// TestLoader_Load_BrandFallback vérifie le remplacement des marques absentes
func TestLoader_Load_BrandFallback(t *testing.T) {
	csvData := validHeader + "\n" +
		"u1,s1,view,p1,,cat,10,2024-03-05 10:00:00 UTC\n"

	loader := NewLoader(time.UTC)
	events, _, err := loader.Load(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if events[0].Brand != domain.UnknownBrand {
		t.Errorf("Expected brand %q, got %q", domain.UnknownBrand, events[0].Brand)
	}
}

// TestLoader_Load_NaiveTimestamp vérifie l'interprétation des timestamps
// sans fuseau dans le fuseau configuré
func TestLoader_Load_NaiveTimestamp(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	csvData := validHeader + "\n" +
		"u1,s1,view,p1,samsung,cat,10,2024-01-15 10:00:00\n"

	loader := NewLoader(paris)
	events, _, err := loader.Load(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 10h heure de Paris en janvier = 9h UTC
	want := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	if !events[0].Time.Equal(want) {
		t.Errorf("Expected %v, got %v", want, events[0].Time)
	}
}

// TestLoader_Load_FieldCountMismatch vérifie que les lignes tronquées
// sont écartées sans interrompre le chargement
func TestLoader_Load_FieldCountMismatch(t *testing.T) {
	csvData := validHeader + "\n" +
		"u1,s1,view\n" +
		"u2,s2,view,p1,samsung,cat,10,2024-03-05 10:00:00 UTC\n"

	loader := NewLoader(time.UTC)
	events, report, err := loader.Load(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Expected 1 event, got %d", len(events))
	}
	if report.MissingField != 1 {
		t.Errorf("Expected MissingField=1, got %d", report.MissingField)
	}
}

// TestLoader_LoadFile_NotFound vérifie l'erreur sur fichier absent
func TestLoader_LoadFile_NotFound(t *testing.T) {
	loader := NewLoader(time.UTC)
	_, _, err := loader.LoadFile("/nonexistent/events.csv")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

// BenchmarkLoader_Load mesure le débit de parsing CSV
func BenchmarkLoader_Load(b *testing.B) {
	var sb strings.Builder
	sb.WriteString(validHeader + "\n")
	for i := 0; i < 10000; i++ {
		fmt.Fprintf(&sb, "u%d,s%d,view,p%d,samsung,electronics.smartphone,%d.99,2024-03-05 10:00:00 UTC\n",
			i%100, i%500, i%50, i%1000)
	}
	data := sb.String()

	loader := NewLoader(time.UTC)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _, err := loader.Load(strings.NewReader(data))
		if err != nil {
			b.Fatal(err)
		}
	}
}
