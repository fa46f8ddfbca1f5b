package application

import (
	"fmt"
	"sort"
	"time"

	"clickpulse/internal/events/domain"
)

// Cleaner transforme les événements bruts en table nettoyée et
// délimitée par sessions logiques
type Cleaner struct {
	maxGap time.Duration
}

// NewCleaner crée un cleaner avec le seuil d'inactivité de session
func NewCleaner(maxGap time.Duration) *Cleaner {
	return &Cleaner{maxGap: maxGap}
}

// Clean déduplique, renumérote les sessions et dérive les colonnes
// temporelles
//
// Politique de découpage: quand un gap d'inactivité dépasse le seuil à
// l'intérieur d'un même user_session nominal, la session logique est
// renumérotée "<session>#n". Le gap brut reste visible dans GapSeconds
// pour garder l'anomalie diagnosticable
func (c *Cleaner) Clean(events []domain.RawEvent) ([]domain.CleanedEvent, domain.DropReport) {
	var report domain.DropReport

	// Déduplication exacte (user, session, produit, type, timestamp)
	seen := make(map[string]struct{}, len(events))
	deduped := make([]domain.RawEvent, 0, len(events))
	for _, e := range events {
		key := e.DedupKey()
		if _, dup := seen[key]; dup {
			report.DuplicateEvent++
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, e)
	}

	// Groupement par session nominale
	bySession := make(map[string][]domain.RawEvent)
	for _, e := range deduped {
		bySession[e.SessionID] = append(bySession[e.SessionID], e)
	}

	sessionIDs := make([]string, 0, len(bySession))
	for id := range bySession {
		sessionIDs = append(sessionIDs, id)
	}
	sort.Strings(sessionIDs)

	cleaned := make([]domain.CleanedEvent, 0, len(deduped))
	for _, id := range sessionIDs {
		group := bySession[id]
		sortEvents(group)
		cleaned = append(cleaned, c.cleanSession(id, group)...)
	}

	return cleaned, report
}

// cleanSession découpe une session nominale triée en sessions logiques
func (c *Cleaner) cleanSession(sessionID string, group []domain.RawEvent) []domain.CleanedEvent {
	out := make([]domain.CleanedEvent, 0, len(group))

	logicalN := 1
	key := sessionID
	var prev time.Time
	var logicalStart time.Time

	for i, e := range group {
		gap := 0.0
		if i > 0 {
			gap = e.Time.Sub(prev).Seconds()
			if e.Time.Sub(prev) > c.maxGap {
				logicalN++
				key = fmt.Sprintf("%s#%d", sessionID, logicalN)
				logicalStart = e.Time
			}
		} else {
			logicalStart = e.Time
		}
		prev = e.Time

		weekday := (int(e.Time.Weekday()) + 6) % 7 // 0 = lundi
		out = append(out, domain.CleanedEvent{
			RawEvent:              e,
			SessionKey:            key,
			GapSeconds:            gap,
			TimeSinceStartSeconds: e.Time.Sub(logicalStart).Seconds(),
			Hour:                  e.Time.Hour(),
			Weekday:               weekday,
			Month:                 int(e.Time.Month()),
			Period:                domain.PeriodForHour(e.Time.Hour()),
		})
	}

	return out
}

// sortEvents ordonne un groupe de façon déterministe
// Le timestamp prime; produit puis type départagent les égalités pour
// que deux runs sur la même entrée produisent la même sortie
func sortEvents(events []domain.RawEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.Before(events[j].Time)
		}
		if events[i].ProductID != events[j].ProductID {
			return events[i].ProductID < events[j].ProductID
		}
		return events[i].Type < events[j].Type
	})
}
