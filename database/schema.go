package database

// rawEventsSchema table d'atterrissage du clickstream
// Les colonnes reprennent l'en-tête des exports CSV pour qu'un COPY
// direct fonctionne sans transformation
const rawEventsSchema = `
CREATE TABLE IF NOT EXISTS raw_events (
	id            BIGSERIAL PRIMARY KEY,
	user_id       TEXT NOT NULL DEFAULT '',
	user_session  TEXT NOT NULL DEFAULT '',
	event_type    TEXT NOT NULL DEFAULT '',
	product_id    TEXT NOT NULL DEFAULT '',
	brand         TEXT NOT NULL DEFAULT '',
	category_code TEXT,
	price         DOUBLE PRECISION NOT NULL DEFAULT 0,
	event_time    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_raw_events_time ON raw_events (event_time);
CREATE INDEX IF NOT EXISTS idx_raw_events_session ON raw_events (user_session);
`

// EnsureSchema crée la table raw_events et ses index si besoin
func EnsureSchema() error {
	_, err := DB.Exec(rawEventsSchema)
	return err
}
