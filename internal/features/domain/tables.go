package domain

import (
	"strconv"
	"time"
)

// Format de sérialisation des timestamps dans les artefacts
const TimeLayout = "2006-01-02 15:04:05"

// SessionRow représente une ligne de la table de features par session
type SessionRow struct {
	SessionKey   string
	UserID       string
	Brand        string
	CategoryCode string

	ViewCount     int
	CartCount     int
	PurchaseCount int

	UniqueViewProducts     int
	UniqueCartProducts     int
	UniquePurchaseProducts int
	UniqueBrands           int
	UniqueCategories       int

	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds float64

	Revenue   float64
	CartValue float64

	ViewToPurchaseRate float64
	IsWeekend          bool
}

// HasCart vérifie si la session contient au moins un ajout au panier
func (s SessionRow) HasCart() bool {
	return s.CartCount > 0
}

// IsAbandoned vérifie si la session est un panier abandonné
// (au moins un ajout au panier, aucun achat)
func (s SessionRow) IsAbandoned() bool {
	return s.CartCount > 0 && s.PurchaseCount == 0
}

// UserRow représente une ligne de la table de features par utilisateur
type UserRow struct {
	UserID string

	TotalSessions  int
	TotalViews     int
	TotalCarts     int
	TotalPurchases int

	TotalRevenue          float64
	AvgSessionDurationSec float64

	FirstSeen time.Time
	LastSeen  time.Time

	ViewToPurchaseRate  float64
	PurchasesPerSession float64
	IsLoyal             bool
}

// EntityRow représente une ligne d'agrégat par marque ou catégorie
type EntityRow struct {
	Key string

	ViewCount     int
	CartCount     int
	PurchaseCount int

	Revenue float64

	ViewToCartRate     float64
	ViewToPurchaseRate float64
}

// Tables regroupe les quatre tables de features d'un run
type Tables struct {
	Sessions   []SessionRow
	Users      []UserRow
	Brands     []EntityRow
	Categories []EntityRow
}

// SessionCSVHeaders retourne les en-têtes CSV de la table session
func SessionCSVHeaders() []string {
	return []string{
		"session_key", "user_id", "brand", "category_code",
		"view_count", "cart_count", "purchase_count",
		"unique_view_products", "unique_cart_products", "unique_purchase_products",
		"unique_brands", "unique_categories",
		"started_at", "ended_at", "duration_seconds",
		"revenue", "cart_value", "view_to_purchase_rate", "is_weekend",
	}
}

// ToCSVRow convertit en tableau pour CSV
func (s SessionRow) ToCSVRow() []string {
	return []string{
		s.SessionKey, s.UserID, s.Brand, s.CategoryCode,
		strconv.Itoa(s.ViewCount), strconv.Itoa(s.CartCount), strconv.Itoa(s.PurchaseCount),
		strconv.Itoa(s.UniqueViewProducts), strconv.Itoa(s.UniqueCartProducts), strconv.Itoa(s.UniquePurchaseProducts),
		strconv.Itoa(s.UniqueBrands), strconv.Itoa(s.UniqueCategories),
		s.StartedAt.UTC().Format(TimeLayout), s.EndedAt.UTC().Format(TimeLayout),
		formatFloat(s.DurationSeconds),
		formatFloat(s.Revenue), formatFloat(s.CartValue),
		formatFloat(s.ViewToPurchaseRate), strconv.FormatBool(s.IsWeekend),
	}
}

// UserCSVHeaders retourne les en-têtes CSV de la table utilisateur
func UserCSVHeaders() []string {
	return []string{
		"user_id", "total_sessions", "total_views", "total_carts", "total_purchases",
		"total_revenue", "avg_session_duration_seconds",
		"first_seen", "last_seen",
		"view_to_purchase_rate", "purchases_per_session", "is_loyal",
	}
}

// ToCSVRow convertit en tableau pour CSV
func (u UserRow) ToCSVRow() []string {
	return []string{
		u.UserID,
		strconv.Itoa(u.TotalSessions), strconv.Itoa(u.TotalViews),
		strconv.Itoa(u.TotalCarts), strconv.Itoa(u.TotalPurchases),
		formatFloat(u.TotalRevenue), formatFloat(u.AvgSessionDurationSec),
		u.FirstSeen.UTC().Format(TimeLayout), u.LastSeen.UTC().Format(TimeLayout),
		formatFloat(u.ViewToPurchaseRate), formatFloat(u.PurchasesPerSession),
		strconv.FormatBool(u.IsLoyal),
	}
}

// EntityCSVHeaders retourne les en-têtes CSV des agrégats marque/catégorie
func EntityCSVHeaders(keyName string) []string {
	return []string{
		keyName, "view_count", "cart_count", "purchase_count",
		"revenue", "view_to_cart_rate", "view_to_purchase_rate",
	}
}

// ToCSVRow convertit en tableau pour CSV
func (e EntityRow) ToCSVRow() []string {
	return []string{
		e.Key,
		strconv.Itoa(e.ViewCount), strconv.Itoa(e.CartCount), strconv.Itoa(e.PurchaseCount),
		formatFloat(e.Revenue),
		formatFloat(e.ViewToCartRate), formatFloat(e.ViewToPurchaseRate),
	}
}

// formatFloat sérialise un flottant de façon stable entre runs
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
