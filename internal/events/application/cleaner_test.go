package application

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"clickpulse/internal/events/domain"
	"clickpulse/internal/testhelpers"
)

// TestCleaner_Clean_Dedup vérifie la déduplication exacte
func TestCleaner_Clean_Dedup(t *testing.T) {
	event := testhelpers.RawEvent("u1", "s1", domain.EventView, 0)
	cleaner := NewCleaner(2 * time.Hour)

	cleaned, report := cleaner.Clean([]domain.RawEvent{event, event, event})

	if len(cleaned) != 1 {
		t.Errorf("Expected 1 event after dedup, got %d", len(cleaned))
	}
	if report.DuplicateEvent != 2 {
		t.Errorf("Expected 2 duplicates counted, got %d", report.DuplicateEvent)
	}
}

// TestCleaner_Clean_NoSplit vérifie qu'une session sous le seuil
// d'inactivité garde sa clé nominale
func TestCleaner_Clean_NoSplit(t *testing.T) {
	events := testhelpers.FunnelSession("u1", "s1", 0)
	cleaner := NewCleaner(2 * time.Hour)

	cleaned, _ := cleaner.Clean(events)

	for _, e := range cleaned {
		if e.SessionKey != "s1" {
			t.Errorf("Expected session key s1, got %q", e.SessionKey)
		}
	}
}

// TestCleaner_Clean_SplitOnGap vérifie la renumérotation des sessions
// logiques au-delà du seuil d'inactivité
func TestCleaner_Clean_SplitOnGap(t *testing.T) {
	events := []domain.RawEvent{
		testhelpers.RawEvent("u1", "s1", domain.EventView, 0),
		testhelpers.RawEvent("u1", "s1", domain.EventCart, 10*time.Minute),
		// gap de 3h > seuil de 2h: nouvelle session logique
		testhelpers.RawEvent("u1", "s1", domain.EventView, 10*time.Minute+3*time.Hour),
		testhelpers.RawEvent("u1", "s1", domain.EventPurchase, 10*time.Minute+3*time.Hour+5*time.Minute),
	}
	cleaner := NewCleaner(2 * time.Hour)

	cleaned, _ := cleaner.Clean(events)
	if len(cleaned) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(cleaned))
	}

	if cleaned[0].SessionKey != "s1" || cleaned[1].SessionKey != "s1" {
		t.Errorf("Expected first two events in s1, got %q and %q", cleaned[0].SessionKey, cleaned[1].SessionKey)
	}
	if cleaned[2].SessionKey != "s1#2" || cleaned[3].SessionKey != "s1#2" {
		t.Errorf("Expected last two events in s1#2, got %q and %q", cleaned[2].SessionKey, cleaned[3].SessionKey)
	}

	// Le gap brut reste diagnosticable
	if cleaned[2].GapSeconds != (3 * time.Hour).Seconds() {
		t.Errorf("Expected raw gap of 3h, got %fs", cleaned[2].GapSeconds)
	}

	// TimeSinceStart repart de zéro dans la session logique
	if cleaned[2].TimeSinceStartSeconds != 0 {
		t.Errorf("Expected time since start 0 at split, got %f", cleaned[2].TimeSinceStartSeconds)
	}
	if cleaned[3].TimeSinceStartSeconds != (5 * time.Minute).Seconds() {
		t.Errorf("Expected time since start 300s, got %f", cleaned[3].TimeSinceStartSeconds)
	}
}

// TestCleaner_Clean_DerivedColumns vérifie les colonnes temporelles
func TestCleaner_Clean_DerivedColumns(t *testing.T) {
	// BaseTime est un mardi 10h UTC en mars
	event := testhelpers.RawEvent("u1", "s1", domain.EventView, 0)
	cleaner := NewCleaner(2 * time.Hour)

	cleaned, _ := cleaner.Clean([]domain.RawEvent{event})
	e := cleaned[0]

	if e.Hour != 10 {
		t.Errorf("Expected hour 10, got %d", e.Hour)
	}
	if e.Weekday != 1 {
		t.Errorf("Expected weekday 1 (mardi), got %d", e.Weekday)
	}
	if e.Month != 3 {
		t.Errorf("Expected month 3, got %d", e.Month)
	}
	if e.Period != domain.PeriodMorning {
		t.Errorf("Expected Morning, got %q", e.Period)
	}
	if e.IsWeekend() {
		t.Error("Tuesday should not be weekend")
	}

	// Samedi
	saturday := testhelpers.RawEvent("u1", "s2", domain.EventView, 4*24*time.Hour)
	cleaned, _ = cleaner.Clean([]domain.RawEvent{saturday})
	if cleaned[0].Weekday != 5 {
		t.Errorf("Expected weekday 5 (samedi), got %d", cleaned[0].Weekday)
	}
	if !cleaned[0].IsWeekend() {
		t.Error("Saturday should be weekend")
	}
}

// TestCleaner_Clean_OrderInvariance vérifie que l'ordre d'entrée ne
// change pas la sortie
func TestCleaner_Clean_OrderInvariance(t *testing.T) {
	events := []domain.RawEvent{
		testhelpers.RawEvent("u1", "s1", domain.EventView, 0),
		testhelpers.RawEvent("u1", "s1", domain.EventCart, time.Minute),
		testhelpers.RawEvent("u2", "s2", domain.EventView, 2*time.Minute),
		testhelpers.RawEvent("u2", "s2", domain.EventPurchase, 3*time.Minute),
	}
	reversed := make([]domain.RawEvent, len(events))
	for i, e := range events {
		reversed[len(events)-1-i] = e
	}

	cleaner := NewCleaner(2 * time.Hour)
	a, _ := cleaner.Clean(events)
	b, _ := cleaner.Clean(reversed)

	if !reflect.DeepEqual(a, b) {
		t.Error("Cleaned output depends on input order")
	}
}

// BenchmarkCleaner_Clean mesure le nettoyage sur un volume réaliste
func BenchmarkCleaner_Clean(b *testing.B) {
	events := make([]domain.RawEvent, 0, 10000)
	for i := 0; i < 10000; i++ {
		e := testhelpers.RawEvent(
			fmt.Sprintf("u%d", i%200),
			fmt.Sprintf("s%d", i%1000),
			domain.EventView,
			time.Duration(i)*time.Second,
		)
		e.ProductID = fmt.Sprintf("p%d", i%50)
		events = append(events, e)
	}

	cleaner := NewCleaner(2 * time.Hour)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = cleaner.Clean(events)
	}
}
