package infrastructure

import (
	"database/sql"

	"clickpulse/internal/events/domain"
	"clickpulse/internal/shared/infrastructure"
)

// EventQueryRepository lit les événements bruts depuis l'entrepôt Postgres
// Source alternative au fichier CSV pour les déploiements où le
// clickstream est déjà historisé en base
type EventQueryRepository struct {
	infrastructure.BaseRepository
}

// NewEventQueryRepository crée un nouveau repository d'événements
func NewEventQueryRepository(db *sql.DB) *EventQueryRepository {
	return &EventQueryRepository{
		BaseRepository: infrastructure.NewBaseRepository(db),
	}
}

// GetRawEvents récupère les événements valides en une seule requête
// Les mêmes règles de validation que le loader CSV sont déléguées au
// SQL: types connus, prix non négatif, timestamp non nul. Les lignes
// écartées sont comptées pour le DropReport du run
func (r *EventQueryRepository) GetRawEvents() ([]domain.RawEvent, domain.DropReport, error) {
	var report domain.DropReport

	query := `
		SELECT user_id, user_session, event_type, product_id,
		       COALESCE(NULLIF(brand, ''), 'unknown') as brand,
		       COALESCE(category_code, '') as category_code,
		       price, event_time
		FROM raw_events
		WHERE user_id <> '' AND user_session <> '' AND product_id <> ''
		  AND event_type IN ('view', 'cart', 'purchase')
		  AND price >= 0
		  AND event_time IS NOT NULL
		ORDER BY event_time, user_session, product_id
	`

	rows, err := r.Query(query)
	if err != nil {
		return nil, report, err
	}
	defer rows.Close()

	var events []domain.RawEvent
	for rows.Next() {
		var (
			e       domain.RawEvent
			rawType string
		)
		if err := rows.Scan(&e.UserID, &e.SessionID, &rawType, &e.ProductID,
			&e.Brand, &e.CategoryCode, &e.Price, &e.Time); err != nil {
			return nil, report, err
		}
		e.Type, _ = domain.ParseEventType(rawType)
		e.Time = e.Time.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, report, err
	}

	dropped, err := r.countInvalid()
	if err != nil {
		return nil, report, err
	}
	report.MissingField = dropped

	return events, report, nil
}

// countInvalid compte les lignes de l'entrepôt écartées par la requête principale
func (r *EventQueryRepository) countInvalid() (int, error) {
	query := `
		SELECT COUNT(*)
		FROM raw_events
		WHERE user_id = '' OR user_session = '' OR product_id = ''
		   OR event_type NOT IN ('view', 'cart', 'purchase')
		   OR price < 0
		   OR event_time IS NULL
	`

	var n int
	if err := r.QueryRow(query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
