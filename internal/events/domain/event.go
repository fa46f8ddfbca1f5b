package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventType représente le type d'un événement clickstream
type EventType string

const (
	EventView     EventType = "view"
	EventCart     EventType = "cart"
	EventPurchase EventType = "purchase"
)

// ParseEventType valide un type d'événement brut
func ParseEventType(raw string) (EventType, error) {
	switch EventType(raw) {
	case EventView, EventCart, EventPurchase:
		return EventType(raw), nil
	}
	return "", fmt.Errorf("unknown event type %q", raw)
}

// UnknownBrand valeur de remplacement des marques absentes
const UnknownBrand = "unknown"

// RawEvent représente un événement brut validé, immutable après chargement
type RawEvent struct {
	UserID       string
	SessionID    string
	Type         EventType
	ProductID    string
	Brand        string
	CategoryCode string
	Price        float64
	Time         time.Time
}

// DedupKey identifie un événement pour la déduplication exacte
func (e RawEvent) DedupKey() string {
	return strings.Join([]string{
		e.UserID, e.SessionID, e.ProductID, string(e.Type),
		e.Time.UTC().Format(time.RFC3339Nano),
	}, "|")
}

// Period représente la tranche horaire d'un événement
type Period string

const (
	PeriodNight     Period = "Night"
	PeriodMorning   Period = "Morning"
	PeriodAfternoon Period = "Afternoon"
	PeriodEvening   Period = "Evening"
)

// PeriodForHour classe une heure dans sa tranche (bornes 0,6,12,18,24)
func PeriodForHour(hour int) Period {
	switch {
	case hour < 6:
		return PeriodNight
	case hour < 12:
		return PeriodMorning
	case hour < 18:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

// CleanedEvent représente un événement nettoyé avec sa session logique
// et ses colonnes temporelles dérivées
type CleanedEvent struct {
	RawEvent

	// SessionKey est la clé de session logique: identique au SessionID
	// nominal, suffixée "#n" quand un gap d'inactivité l'a renuméroté
	SessionKey string

	GapSeconds            float64
	TimeSinceStartSeconds float64

	Hour    int
	Weekday int // 0 = lundi, 6 = dimanche
	Month   int
	Period  Period
}

// IsWeekend vérifie si l'événement tombe un samedi ou dimanche
func (e CleanedEvent) IsWeekend() bool {
	return e.Weekday >= 5
}

// SchemaError signale des colonnes requises absentes de la source
// Fatal: le run est interrompu avant tout traitement
type SchemaError struct {
	Missing []string
}

// Error implémente error
func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// DropReport compte les lignes écartées pendant le chargement, par motif
// Les lignes invalides sont écartées et comptées, jamais réparées
type DropReport struct {
	MissingField   int
	UnknownType    int
	BadPrice       int
	BadTimestamp   int
	DuplicateEvent int
}

// Total retourne le nombre total de lignes écartées
func (r DropReport) Total() int {
	return r.MissingField + r.UnknownType + r.BadPrice + r.BadTimestamp + r.DuplicateEvent
}

// String résume le rapport pour les logs de fin de run
func (r DropReport) String() string {
	return fmt.Sprintf("dropped %d rows (missing=%d, type=%d, price=%d, timestamp=%d, duplicate=%d)",
		r.Total(), r.MissingField, r.UnknownType, r.BadPrice, r.BadTimestamp, r.DuplicateEvent)
}

// Merge additionne deux rapports
func (r DropReport) Merge(other DropReport) DropReport {
	return DropReport{
		MissingField:   r.MissingField + other.MissingField,
		UnknownType:    r.UnknownType + other.UnknownType,
		BadPrice:       r.BadPrice + other.BadPrice,
		BadTimestamp:   r.BadTimestamp + other.BadTimestamp,
		DuplicateEvent: r.DuplicateEvent + other.DuplicateEvent,
	}
}
