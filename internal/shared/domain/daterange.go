package domain

import (
	"errors"
	"time"
)

// DateRange représente une période temporelle avec validation
// Value Object immutable: pas de setters, valeurs fixées à la création
type DateRange struct {
	start time.Time
	end   time.Time
}

// NewDateRange crée un DateRange borné par deux instants observés
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, errors.New("date range bounds cannot be zero")
	}
	if end.Before(start) {
		return DateRange{}, errors.New("end cannot be before start")
	}
	return DateRange{start: start, end: end}, nil
}

// Start retourne la date de début
func (dr DateRange) Start() time.Time {
	return dr.start
}

// End retourne la date de fin
func (dr DateRange) End() time.Time {
	return dr.end
}

// Duration retourne la durée de la période
func (dr DateRange) Duration() time.Duration {
	return dr.end.Sub(dr.start)
}

// IsZero vérifie si la période n'a pas été initialisée
func (dr DateRange) IsZero() bool {
	return dr.start.IsZero() && dr.end.IsZero()
}
