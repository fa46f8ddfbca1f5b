package infrastructure

import (
	"context"
	"database/sql"
)

// BaseRepository structure de base pour les repositories de lecture
// Le pipeline ne fait que lire l'entrepôt d'événements: pas de
// transactions ni d'écritures hors seed
type BaseRepository struct {
	db  *sql.DB
	ctx context.Context
}

// NewBaseRepository crée un nouveau repository de base
func NewBaseRepository(db *sql.DB) BaseRepository {
	return BaseRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// WithContext retourne une copie liée au contexte donné
func (r BaseRepository) WithContext(ctx context.Context) BaseRepository {
	r.ctx = ctx
	return r
}

// Context retourne le contexte actuel
func (r *BaseRepository) Context() context.Context {
	return r.ctx
}

// Query exécute une requête de lecture
func (r *BaseRepository) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return r.db.QueryContext(r.ctx, query, args...)
}

// QueryRow exécute une requête de lecture pour une seule ligne
func (r *BaseRepository) QueryRow(query string, args ...interface{}) *sql.Row {
	return r.db.QueryRowContext(r.ctx, query, args...)
}

// Exec exécute une requête d'écriture (réservé au seed)
func (r *BaseRepository) Exec(query string, args ...interface{}) (sql.Result, error) {
	return r.db.ExecContext(r.ctx, query, args...)
}
