package testhelpers

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	eventsdomain "clickpulse/internal/events/domain"
)

// BaseTime origine temporelle commune des fixtures
// Un mardi, pour que les fixtures ne tombent pas en week-end par accident
var BaseTime = time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

// SetupTestDB initialise une connexion à la base de données de test
func SetupTestDB(tb testing.TB) *sql.DB {
	tb.Helper()

	// Charger les variables d'environnement
	_ = godotenv.Load("../../../.env")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "clickpulse"),
		getEnv("DB_PASSWORD", "clickpulse"),
		getEnv("DB_NAME", "clickpulse"),
		getEnv("DB_SSLMODE", "disable"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		tb.Fatalf("Failed to open database: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		tb.Fatalf("Failed to ping database: %v", err)
	}

	return db
}

// SkipIfNoDatabase skip le test/benchmark si la DB n'est pas disponible
func SkipIfNoDatabase(tb testing.TB) {
	tb.Helper()

	_ = godotenv.Load("../../../.env")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "clickpulse"),
		getEnv("DB_PASSWORD", "clickpulse"),
		getEnv("DB_NAME", "clickpulse"),
		getEnv("DB_SSLMODE", "disable"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		tb.Skipf("Database not available: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		tb.Skipf("Database not reachable: %v", err)
	}
}

// TempOutputDir crée un répertoire de sortie jetable pour les artefacts
func TempOutputDir(tb testing.TB) string {
	tb.Helper()
	return tb.TempDir()
}

// WriteCSVFixture écrit un fichier CSV de test et retourne son chemin
func WriteCSVFixture(tb testing.TB, content string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "events.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

// RawEvent construit un événement brut de test avec des valeurs par défaut
// offset décale l'horodatage par rapport à BaseTime
func RawEvent(userID, sessionID string, eventType eventsdomain.EventType, offset time.Duration) eventsdomain.RawEvent {
	return eventsdomain.RawEvent{
		UserID:       userID,
		SessionID:    sessionID,
		Type:         eventType,
		ProductID:    "prod-1",
		Brand:        "samsung",
		CategoryCode: "electronics.smartphone",
		Price:        100,
		Time:         BaseTime.Add(offset),
	}
}

// FunnelSession génère une session complète vue → panier → achat
// Les trois événements portent le même produit, espacés d'une minute
func FunnelSession(userID, sessionID string, start time.Duration) []eventsdomain.RawEvent {
	return []eventsdomain.RawEvent{
		RawEvent(userID, sessionID, eventsdomain.EventView, start),
		RawEvent(userID, sessionID, eventsdomain.EventCart, start+time.Minute),
		RawEvent(userID, sessionID, eventsdomain.EventPurchase, start+2*time.Minute),
	}
}

// getEnv récupère une variable d'environnement avec fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
