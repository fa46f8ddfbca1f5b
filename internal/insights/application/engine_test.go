package application

import (
	"fmt"
	"testing"
	"time"

	"clickpulse/internal/config"
	featdomain "clickpulse/internal/features/domain"
	"clickpulse/internal/insights/domain"
	"clickpulse/internal/testhelpers"
)

// sessionRow construit une session de test minimale
func sessionRow(key, user string, views, carts, purchases int, revenue, cartValue float64) featdomain.SessionRow {
	rate := 0.0
	if views > 0 {
		rate = float64(purchases) / float64(views)
		if rate > 1 {
			rate = 1
		}
	}
	return featdomain.SessionRow{
		SessionKey:         key,
		UserID:             user,
		Brand:              "samsung",
		ViewCount:          views,
		CartCount:          carts,
		PurchaseCount:      purchases,
		UniqueBrands:       1,
		StartedAt:          testhelpers.BaseTime,
		EndedAt:            testhelpers.BaseTime.Add(5 * time.Minute),
		DurationSeconds:    300,
		Revenue:            revenue,
		CartValue:          cartValue,
		ViewToPurchaseRate: rate,
	}
}

// userRow construit un utilisateur de test minimal
func userRow(id string, sessions int, revenue float64, loyal bool) featdomain.UserRow {
	return featdomain.UserRow{
		UserID:        id,
		TotalSessions: sessions,
		TotalViews:    sessions * 3,
		TotalRevenue:  revenue,
		FirstSeen:     testhelpers.BaseTime,
		LastSeen:      testhelpers.BaseTime.Add(time.Hour),
		IsLoyal:       loyal,
	}
}

func baseTables() featdomain.Tables {
	return featdomain.Tables{
		Sessions: []featdomain.SessionRow{
			sessionRow("s1", "u1", 3, 1, 1, 100, 100),
			sessionRow("s2", "u2", 2, 1, 0, 0, 40),
			sessionRow("s3", "u3", 4, 0, 0, 0, 0),
		},
		Users: []featdomain.UserRow{
			userRow("u1", 6, 100, true),
			userRow("u2", 2, 0, false),
			userRow("u3", 1, 0, false),
		},
		Brands: []featdomain.EntityRow{
			{Key: "samsung", ViewCount: 9, CartCount: 2, PurchaseCount: 1, Revenue: 100, ViewToCartRate: 2.0 / 9, ViewToPurchaseRate: 1.0 / 9},
		},
		Categories: []featdomain.EntityRow{
			{Key: "electronics.smartphone", ViewCount: 9, CartCount: 2, PurchaseCount: 1, Revenue: 100, ViewToCartRate: 2.0 / 9, ViewToPurchaseRate: 1.0 / 9},
		},
	}
}

// TestEngine_Generate_Empty vérifie le refus de tables vides
func TestEngine_Generate_Empty(t *testing.T) {
	engine := NewEngine(config.Default())
	_, err := engine.Generate(featdomain.Tables{}, nil)
	if err == nil {
		t.Fatal("Expected error for empty tables")
	}
}

// TestEngine_Generate_Funnel vérifie les comptes et taux du funnel
func TestEngine_Generate_Funnel(t *testing.T) {
	engine := NewEngine(config.Default())
	summary, err := engine.Generate(baseTables(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	f := summary.Funnel
	if f.TotalSessions != 3 || f.SessionsWithViews != 3 || f.SessionsWithCarts != 2 || f.SessionsWithPurchases != 1 {
		t.Errorf("Unexpected funnel counts: %+v", f)
	}
	if f.ViewToCart != 2.0/3 {
		t.Errorf("Expected view→cart 2/3, got %f", f.ViewToCart)
	}
	if f.CartToPurchase != 0.5 {
		t.Errorf("Expected cart→purchase 0.5, got %f", f.CartToPurchase)
	}
	if f.ViewToPurchase != 1.0/3 {
		t.Errorf("Expected view→purchase 1/3, got %f", f.ViewToPurchase)
	}
}

// TestEngine_Generate_AbandonmentRevenue vérifie que le revenu
// récupérable est la somme des valeurs panier des sessions abandonnées
func TestEngine_Generate_AbandonmentRevenue(t *testing.T) {
	engine := NewEngine(config.Default())
	summary, err := engine.Generate(baseTables(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	r := summary.Revenue
	// Seule s2 a un panier sans achat
	if r.AbandonedSessions != 1 {
		t.Errorf("Expected 1 abandoned session, got %d", r.AbandonedSessions)
	}
	if r.AbandonmentRevenue != 40 {
		t.Errorf("Expected abandonment revenue 40, got %f", r.AbandonmentRevenue)
	}
}

// TestEngine_Generate_Top20Share vérifie la part du top 20% des
// utilisateurs, avec minimum un utilisateur
func TestEngine_Generate_Top20Share(t *testing.T) {
	tables := baseTables()
	tables.Users = []featdomain.UserRow{
		userRow("u1", 1, 80, false),
		userRow("u2", 1, 10, false),
		userRow("u3", 1, 10, false),
	}

	engine := NewEngine(config.Default())
	summary, err := engine.Generate(tables, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// 3 utilisateurs: 3*20/100 = 0, minimum 1 → u1 seul
	if summary.Revenue.Top20PctShare != 0.8 {
		t.Errorf("Expected top 20%% share 0.8, got %f", summary.Revenue.Top20PctShare)
	}
}

// TestEngine_Generate_LowFunnelAlert vérifie le signalement des
// entités sous le seuil de conversion
func TestEngine_Generate_LowFunnelAlert(t *testing.T) {
	cfg := config.Default()
	cfg.LowFunnelAlertThreshold = 0.2 // 1/9 est en dessous

	engine := NewEngine(cfg)
	summary, err := engine.Generate(baseTables(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	under := summary.ProductPerformance.Underperforming
	if len(under) != 2 {
		t.Fatalf("Expected 2 underperforming entities, got %v", under)
	}
	if under[0] != "brand:samsung" || under[1] != "category:electronics.smartphone" {
		t.Errorf("Unexpected underperforming entities: %v", under)
	}

	found := false
	for _, ins := range summary.Insights {
		if ins.Name == InsightLowFunnelAlert {
			found = true
			if ins.Value != 2 {
				t.Errorf("Expected alert value 2, got %f", ins.Value)
			}
		}
	}
	if !found {
		t.Error("Expected a low funnel alert insight")
	}
}

// TestEngine_Generate_SpendingSegments vérifie la mise à part des
// non-acheteurs
func TestEngine_Generate_SpendingSegments(t *testing.T) {
	engine := NewEngine(config.Default())
	summary, err := engine.Generate(baseTables(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var zero *domain.SegmentStat
	for i, seg := range summary.Segmentation.SpendingSegments {
		if seg.Segment == "Zero Spender" {
			zero = &summary.Segmentation.SpendingSegments[i]
		}
	}
	if zero == nil {
		t.Fatal("Expected a Zero Spender segment")
	}
	if zero.UserCount != 2 {
		t.Errorf("Expected 2 zero spenders, got %d", zero.UserCount)
	}
}

// TestEngine_Generate_InsightWindow vérifie que chaque record porte la
// fenêtre temporelle observée
func TestEngine_Generate_InsightWindow(t *testing.T) {
	engine := NewEngine(config.Default())
	summary, err := engine.Generate(baseTables(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(summary.Insights) == 0 {
		t.Fatal("Expected some insights")
	}
	for _, ins := range summary.Insights {
		if ins.WindowStart.IsZero() || ins.WindowEnd.IsZero() {
			t.Errorf("Insight %q has empty window", ins.Name)
		}
		if ins.WindowEnd.Before(ins.WindowStart) {
			t.Errorf("Insight %q has inverted window", ins.Name)
		}
	}
}

// TestEngine_CompareBaseline vérifie les alertes de régression entre runs
func TestEngine_CompareBaseline(t *testing.T) {
	engine := NewEngine(config.Default())

	good, err := engine.Generate(baseTables(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	baseline := &domain.RunSummary{
		GeneratedAt: testhelpers.BaseTime,
		Tag:         "previous",
		Summary:     good,
	}

	// Run dégradé: plus aucun achat
	degraded := baseTables()
	for i := range degraded.Sessions {
		degraded.Sessions[i].PurchaseCount = 0
		degraded.Sessions[i].Revenue = 0
		degraded.Sessions[i].ViewToPurchaseRate = 0
	}
	for i := range degraded.Users {
		degraded.Users[i].TotalRevenue = 0
	}

	summary, err := engine.Generate(degraded, baseline)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var hasConversionDrop, hasRevenueDrop bool
	for _, ins := range summary.Insights {
		switch ins.Name {
		case InsightConversionDrop:
			hasConversionDrop = true
		case InsightRevenueDrop:
			hasRevenueDrop = true
		}
	}
	if !hasConversionDrop {
		t.Error("Expected a conversion drop alert")
	}
	if !hasRevenueDrop {
		t.Error("Expected a revenue drop alert")
	}

	// Sans baseline, pas d'alertes de régression
	noBaseline, err := engine.Generate(degraded, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for _, ins := range noBaseline.Insights {
		if ins.Name == InsightConversionDrop || ins.Name == InsightRevenueDrop {
			t.Errorf("Unexpected regression alert %q without baseline", ins.Name)
		}
	}
}

// TestEngine_Generate_StableDrop vérifie qu'une baisse sous le seuil
// ne déclenche pas d'alerte
func TestEngine_Generate_StableDrop(t *testing.T) {
	cfg := config.Default() // seuil 10%
	engine := NewEngine(cfg)

	good, err := engine.Generate(baseTables(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	baseline := &domain.RunSummary{Tag: "previous", Summary: good}

	// Même tables: aucune baisse
	summary, err := engine.Generate(baseTables(), baseline)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for _, ins := range summary.Insights {
		if ins.Name == InsightConversionDrop || ins.Name == InsightRevenueDrop {
			t.Errorf("Unexpected regression alert %q on identical run", ins.Name)
		}
	}
}

// BenchmarkEngine_Generate mesure le calcul du résumé sur un volume réaliste
func BenchmarkEngine_Generate(b *testing.B) {
	tables := featdomain.Tables{}
	for i := 0; i < 5000; i++ {
		purchases := 0
		revenue := 0.0
		if i%4 == 0 {
			purchases = 1
			revenue = float64(20 + i%200)
		}
		tables.Sessions = append(tables.Sessions,
			sessionRow(fmt.Sprintf("s%d", i), fmt.Sprintf("u%d", i%800), 3+i%5, i%3, purchases, revenue, revenue))
	}
	for i := 0; i < 800; i++ {
		tables.Users = append(tables.Users, userRow(fmt.Sprintf("u%d", i), 1+i%8, float64(i%300), i%8 >= 5))
	}
	for i := 0; i < 50; i++ {
		tables.Brands = append(tables.Brands, featdomain.EntityRow{
			Key: fmt.Sprintf("brand%d", i), ViewCount: 100 + i, PurchaseCount: i % 20, Revenue: float64(i * 37),
			ViewToPurchaseRate: float64(i%20) / float64(100+i),
		})
	}
	tables.Categories = tables.Brands

	engine := NewEngine(config.Default())

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := engine.Generate(tables, nil)
		if err != nil {
			b.Fatal(err)
		}
	}
}
