package application

import (
	"database/sql"
	"time"

	eventsapp "clickpulse/internal/events/application"
	eventsdomain "clickpulse/internal/events/domain"
	eventsinfra "clickpulse/internal/events/infrastructure"
)

// EventSource fournit les événements bruts d'un run
type EventSource interface {
	Events() ([]eventsdomain.RawEvent, eventsdomain.DropReport, error)
}

// CSVSource lit les événements depuis un export CSV de clickstream
type CSVSource struct {
	path   string
	loader *eventsapp.Loader
}

// NewCSVSource crée une source CSV
// defaultLocation sert à interpréter les horodatages sans fuseau
func NewCSVSource(path string, defaultLocation *time.Location) *CSVSource {
	return &CSVSource{
		path:   path,
		loader: eventsapp.NewLoader(defaultLocation),
	}
}

// Events charge et valide le fichier
func (s *CSVSource) Events() ([]eventsdomain.RawEvent, eventsdomain.DropReport, error) {
	return s.loader.LoadFile(s.path)
}

// PostgresSource lit les événements depuis la table raw_events
type PostgresSource struct {
	repo *eventsinfra.EventQueryRepository
}

// NewPostgresSource crée une source PostgreSQL
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{repo: eventsinfra.NewEventQueryRepository(db)}
}

// Events charge les lignes valides, les invalides comptent comme drops
func (s *PostgresSource) Events() ([]eventsdomain.RawEvent, eventsdomain.DropReport, error) {
	return s.repo.GetRawEvents()
}
