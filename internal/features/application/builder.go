package application

import (
	"errors"
	"sort"
	"time"

	eventsdomain "clickpulse/internal/events/domain"
	"clickpulse/internal/features/domain"
	shareddomain "clickpulse/internal/shared/domain"
)

// Builder agrège la table d'événements nettoyée en quatre tables de
// features: session, utilisateur, marque, catégorie
//
// L'agrégation est un pur group-by-reduce sur des réductions
// commutatives (comptes, sommes, min, max, ensembles distincts):
// l'ordre des lignes d'entrée ne peut pas influencer le résultat.
// Les sorties sont triées par clé pour que deux runs sur la même
// entrée soient octet pour octet identiques
type Builder struct {
	loyaltyCutoff int
}

// NewBuilder crée un builder avec le seuil de fidélité
func NewBuilder(loyaltyCutoff int) *Builder {
	return &Builder{loyaltyCutoff: loyaltyCutoff}
}

// sessionAccum accumulateur d'une session logique
type sessionAccum struct {
	userID       string
	brand        string
	categoryCode string

	viewCount     int
	cartCount     int
	purchaseCount int

	viewProducts     map[string]struct{}
	cartProducts     map[string]struct{}
	purchaseProducts map[string]struct{}
	brands           map[string]struct{}
	categories       map[string]struct{}

	startedAt time.Time
	endedAt   time.Time

	revenue   shareddomain.Money
	cartValue shareddomain.Money
}

// Build construit les quatre tables de features
func (b *Builder) Build(events []eventsdomain.CleanedEvent) (domain.Tables, error) {
	if len(events) == 0 {
		return domain.Tables{}, errors.New("no events after cleaning")
	}

	sessions := b.buildSessions(events)
	users := b.buildUsers(sessions)
	brands := buildEntities(events, func(e eventsdomain.CleanedEvent) string { return e.Brand })
	categories := buildEntities(events, func(e eventsdomain.CleanedEvent) string { return e.CategoryCode })

	return domain.Tables{
		Sessions:   sessions,
		Users:      users,
		Brands:     brands,
		Categories: categories,
	}, nil
}

// buildSessions agrège les événements par session logique
func (b *Builder) buildSessions(events []eventsdomain.CleanedEvent) []domain.SessionRow {
	accums := make(map[string]*sessionAccum)

	for _, e := range events {
		acc, ok := accums[e.SessionKey]
		if !ok {
			acc = &sessionAccum{
				userID:           e.UserID,
				brand:            e.Brand,
				categoryCode:     e.CategoryCode,
				viewProducts:     make(map[string]struct{}),
				cartProducts:     make(map[string]struct{}),
				purchaseProducts: make(map[string]struct{}),
				brands:           make(map[string]struct{}),
				categories:       make(map[string]struct{}),
				startedAt:        e.Time,
				endedAt:          e.Time,
			}
			accums[e.SessionKey] = acc
		}

		if e.Time.Before(acc.startedAt) {
			acc.startedAt = e.Time
			acc.brand = e.Brand
			acc.categoryCode = e.CategoryCode
		}
		if e.Time.After(acc.endedAt) {
			acc.endedAt = e.Time
		}

		acc.brands[e.Brand] = struct{}{}
		if e.CategoryCode != "" {
			acc.categories[e.CategoryCode] = struct{}{}
		}

		switch e.Type {
		case eventsdomain.EventView:
			acc.viewCount++
			acc.viewProducts[e.ProductID] = struct{}{}
		case eventsdomain.EventCart:
			acc.cartCount++
			acc.cartProducts[e.ProductID] = struct{}{}
			acc.cartValue = acc.cartValue.Add(shareddomain.MustNewMoney(e.Price))
		case eventsdomain.EventPurchase:
			acc.purchaseCount++
			acc.purchaseProducts[e.ProductID] = struct{}{}
			acc.revenue = acc.revenue.Add(shareddomain.MustNewMoney(e.Price))
		}
	}

	keys := make([]string, 0, len(accums))
	for key := range accums {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([]domain.SessionRow, 0, len(keys))
	for _, key := range keys {
		acc := accums[key]
		weekday := (int(acc.startedAt.Weekday()) + 6) % 7
		rows = append(rows, domain.SessionRow{
			SessionKey:             key,
			UserID:                 acc.userID,
			Brand:                  acc.brand,
			CategoryCode:           acc.categoryCode,
			ViewCount:              acc.viewCount,
			CartCount:              acc.cartCount,
			PurchaseCount:          acc.purchaseCount,
			UniqueViewProducts:     len(acc.viewProducts),
			UniqueCartProducts:     len(acc.cartProducts),
			UniquePurchaseProducts: len(acc.purchaseProducts),
			UniqueBrands:           len(acc.brands),
			UniqueCategories:       len(acc.categories),
			StartedAt:              acc.startedAt,
			EndedAt:                acc.endedAt,
			DurationSeconds:        acc.endedAt.Sub(acc.startedAt).Seconds(),
			Revenue:                acc.revenue.Amount(),
			CartValue:              acc.cartValue.Amount(),
			ViewToPurchaseRate:     shareddomain.NewRatio(float64(acc.purchaseCount), float64(acc.viewCount)).Value(),
			IsWeekend:              weekday >= 5,
		})
	}

	return rows
}

// userAccum accumulateur d'un utilisateur
type userAccum struct {
	sessions      int
	views         int
	carts         int
	purchases     int
	revenue       shareddomain.Money
	totalDuration float64
	firstSeen     time.Time
	lastSeen      time.Time
}

// buildUsers agrège les sessions par utilisateur
// Chaque session appartient à exactement un utilisateur
func (b *Builder) buildUsers(sessions []domain.SessionRow) []domain.UserRow {
	accums := make(map[string]*userAccum)

	for _, s := range sessions {
		acc, ok := accums[s.UserID]
		if !ok {
			acc = &userAccum{firstSeen: s.StartedAt, lastSeen: s.EndedAt}
			accums[s.UserID] = acc
		}
		acc.sessions++
		acc.views += s.ViewCount
		acc.carts += s.CartCount
		acc.purchases += s.PurchaseCount
		acc.revenue = acc.revenue.Add(shareddomain.MustNewMoney(s.Revenue))
		acc.totalDuration += s.DurationSeconds
		if s.StartedAt.Before(acc.firstSeen) {
			acc.firstSeen = s.StartedAt
		}
		if s.EndedAt.After(acc.lastSeen) {
			acc.lastSeen = s.EndedAt
		}
	}

	ids := make([]string, 0, len(accums))
	for id := range accums {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]domain.UserRow, 0, len(ids))
	for _, id := range ids {
		acc := accums[id]
		avgDuration := 0.0
		perSession := 0.0
		if acc.sessions > 0 {
			avgDuration = acc.totalDuration / float64(acc.sessions)
			perSession = float64(acc.purchases) / float64(acc.sessions)
		}
		rows = append(rows, domain.UserRow{
			UserID:                id,
			TotalSessions:         acc.sessions,
			TotalViews:            acc.views,
			TotalCarts:            acc.carts,
			TotalPurchases:        acc.purchases,
			TotalRevenue:          acc.revenue.Amount(),
			AvgSessionDurationSec: avgDuration,
			FirstSeen:             acc.firstSeen,
			LastSeen:              acc.lastSeen,
			ViewToPurchaseRate:    shareddomain.NewRatio(float64(acc.purchases), float64(acc.views)).Value(),
			PurchasesPerSession:   perSession,
			IsLoyal:               acc.sessions >= b.loyaltyCutoff,
		})
	}

	return rows
}

// entityAccum accumulateur d'un agrégat marque ou catégorie
type entityAccum struct {
	views     int
	carts     int
	purchases int
	revenue   shareddomain.Money
}

// buildEntities agrège les événements par clé d'entité (marque ou catégorie)
// Les événements sans clé (catégorie absente) sont ignorés pour cette table
func buildEntities(events []eventsdomain.CleanedEvent, keyOf func(eventsdomain.CleanedEvent) string) []domain.EntityRow {
	accums := make(map[string]*entityAccum)

	for _, e := range events {
		key := keyOf(e)
		if key == "" {
			continue
		}
		acc, ok := accums[key]
		if !ok {
			acc = &entityAccum{}
			accums[key] = acc
		}
		switch e.Type {
		case eventsdomain.EventView:
			acc.views++
		case eventsdomain.EventCart:
			acc.carts++
		case eventsdomain.EventPurchase:
			acc.purchases++
			acc.revenue = acc.revenue.Add(shareddomain.MustNewMoney(e.Price))
		}
	}

	keys := make([]string, 0, len(accums))
	for key := range accums {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([]domain.EntityRow, 0, len(keys))
	for _, key := range keys {
		acc := accums[key]
		rows = append(rows, domain.EntityRow{
			Key:                key,
			ViewCount:          acc.views,
			CartCount:          acc.carts,
			PurchaseCount:      acc.purchases,
			Revenue:            acc.revenue.Amount(),
			ViewToCartRate:     shareddomain.NewRatio(float64(acc.carts), float64(acc.views)).Value(),
			ViewToPurchaseRate: shareddomain.NewRatio(float64(acc.purchases), float64(acc.views)).Value(),
		})
	}

	return rows
}
