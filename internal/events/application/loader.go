package application

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"clickpulse/internal/events/domain"
)

// Colonnes requises dans la source brute
var requiredColumns = []string{
	"user_id", "user_session", "event_type", "product_id", "price", "event_time",
}

// Formats de timestamp acceptés, du plus courant au plus rare
// Les deux derniers sont naïfs: interprétés dans le fuseau configuré
var timestampLayouts = []string{
	"2006-01-02 15:04:05 MST",
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
}

var naiveTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Loader charge et valide les événements bruts depuis une source CSV
type Loader struct {
	defaultLocation *time.Location
}

// NewLoader crée un loader avec le fuseau supposé des timestamps naïfs
func NewLoader(defaultLocation *time.Location) *Loader {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &Loader{defaultLocation: defaultLocation}
}

// LoadFile charge un fichier d'événements bruts
func (l *Loader) LoadFile(path string) ([]domain.RawEvent, domain.DropReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.DropReport{}, fmt.Errorf("open raw events: %w", err)
	}
	defer f.Close()

	return l.Load(f)
}

// Load lit les événements depuis un flux CSV délimité
// L'en-tête est validé d'abord: colonne requise absente = SchemaError
// fatal avant tout traitement. Les lignes invalides sont écartées et
// comptées dans le DropReport, le chargement continue
func (l *Loader) Load(r io.Reader) ([]domain.RawEvent, domain.DropReport, error) {
	var report domain.DropReport

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, report, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, report, &domain.SchemaError{Missing: missing}
	}

	var events []domain.RawEvent
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, csv.ErrFieldCount) {
				report.MissingField++
				continue
			}
			return nil, report, fmt.Errorf("read row: %w", err)
		}

		event, reason := l.parseRow(record, index)
		if reason != nil {
			reason(&report)
			continue
		}
		events = append(events, event)
	}

	return events, report, nil
}

// parseRow valide une ligne, retourne l'incrément du motif d'écart si invalide
func (l *Loader) parseRow(record []string, index map[string]int) (domain.RawEvent, func(*domain.DropReport)) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	userID := field("user_id")
	sessionID := field("user_session")
	productID := field("product_id")
	if userID == "" || sessionID == "" || productID == "" {
		return domain.RawEvent{}, func(r *domain.DropReport) { r.MissingField++ }
	}

	eventType, err := domain.ParseEventType(field("event_type"))
	if err != nil {
		return domain.RawEvent{}, func(r *domain.DropReport) { r.UnknownType++ }
	}

	price, err := strconv.ParseFloat(field("price"), 64)
	if err != nil || price < 0 {
		return domain.RawEvent{}, func(r *domain.DropReport) { r.BadPrice++ }
	}

	ts, err := l.parseTimestamp(field("event_time"))
	if err != nil {
		return domain.RawEvent{}, func(r *domain.DropReport) { r.BadTimestamp++ }
	}

	brand := field("brand")
	if brand == "" {
		brand = domain.UnknownBrand
	}

	return domain.RawEvent{
		UserID:       userID,
		SessionID:    sessionID,
		Type:         eventType,
		ProductID:    productID,
		Brand:        brand,
		CategoryCode: field("category_code"),
		Price:        price,
		Time:         ts,
	}, nil
}

// parseTimestamp normalise un timestamp vers UTC
// Les formats naïfs sont interprétés dans le fuseau par défaut
func (l *Loader) parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveTimestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, l.defaultLocation); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
