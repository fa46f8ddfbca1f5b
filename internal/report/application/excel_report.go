package application

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/360EntSecGroup-Skylar/excelize/v2"

	featdomain "clickpulse/internal/features/domain"
	insightdomain "clickpulse/internal/insights/domain"
	sharedinfra "clickpulse/internal/shared/infrastructure"
)

// maxDetailRows plafonne les feuilles de détail pour garder des
// classeurs ouvrables sur un poste analyste
const maxDetailRows = 1000

// Noms des feuilles du classeur
const (
	sheetExecutive = "Executive Summary"
	sheetUsers     = "User Analysis"
	sheetSessions  = "Session Analysis"
	sheetBrands    = "Brand Performance"
	sheetCategory  = "Category Performance"
	sheetTemporal  = "Temporal Analysis"
	sheetRecovery  = "Revenue Recovery"
	sheetInsights  = "Business Insights"
)

// sheetContent contenu précalculé d'une feuille: en-têtes puis lignes
type sheetContent struct {
	name     string
	headers  []interface{}
	rows     [][]interface{}
	colWidth float64
	lastCol  string
}

// ExcelReporter génère le classeur multi-feuilles du run
// Les matrices de lignes sont calculées en parallèle sur un pool de
// workers, l'écriture excelize reste séquentielle (le paquet n'est
// pas sûr pour un accès concurrent)
type ExcelReporter struct {
	workerCount int
}

// NewExcelReporter crée un générateur de rapport
func NewExcelReporter(workerCount int) *ExcelReporter {
	if workerCount < 1 {
		workerCount = 1
	}
	return &ExcelReporter{workerCount: workerCount}
}

// Generate écrit report_<tag>.xlsx dans dir et retourne son chemin
func (r *ExcelReporter) Generate(dir, tag string, tables featdomain.Tables, summary insightdomain.Summary) (string, error) {
	// Le pool est à usage unique, on en crée un par génération
	pool := sharedinfra.NewWorkerPool(r.workerCount)
	pool.Start()

	contents := make([]*sheetContent, 8)
	builders := []func() *sheetContent{
		func() *sheetContent { return executiveSheet(summary) },
		func() *sheetContent { return userSheet(tables.Users) },
		func() *sheetContent { return sessionSheet(tables.Sessions) },
		func() *sheetContent { return entitySheet(sheetBrands, "brand", tables.Brands) },
		func() *sheetContent { return entitySheet(sheetCategory, "category", tables.Categories) },
		func() *sheetContent { return temporalSheet(summary.Temporal) },
		func() *sheetContent { return recoverySheet(tables.Sessions, summary.Revenue) },
		func() *sheetContent { return insightSheet(summary.Insights) },
	}
	for i, build := range builders {
		i, build := i, build
		if err := pool.Submit(func() error {
			contents[i] = build()
			return nil
		}); err != nil {
			return "", fmt.Errorf("submit report sheet: %w", err)
		}
	}
	if err := pool.Wait(); err != nil {
		return "", fmt.Errorf("build report sheets: %w", err)
	}

	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(`{"font":{"bold":true},"fill":{"type":"pattern","color":["#DCE6F1"],"pattern":1}}`)
	if err != nil {
		return "", fmt.Errorf("report header style: %w", err)
	}

	for _, content := range contents {
		if err := writeSheet(f, content, headerStyle); err != nil {
			return "", fmt.Errorf("write sheet %s: %w", content.name, err)
		}
	}

	// La feuille par défaut d'excelize ne sert à rien ici
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(f.GetSheetIndex(sheetExecutive))

	path := filepath.Join(dir, fmt.Sprintf("report_%s.xlsx", tag))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

// writeSheet pose en-têtes stylés puis lignes de données
func writeSheet(f *excelize.File, content *sheetContent, headerStyle int) error {
	f.NewSheet(content.name)

	if err := f.SetSheetRow(content.name, "A1", &content.headers); err != nil {
		return err
	}
	if err := f.SetCellStyle(content.name, "A1", content.lastCol+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(content.name, "A", content.lastCol, content.colWidth); err != nil {
		return err
	}

	for i, row := range content.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(content.name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func executiveSheet(s insightdomain.Summary) *sheetContent {
	rows := [][]interface{}{
		{"Total sessions", s.Funnel.TotalSessions},
		{"Sessions with views", s.Funnel.SessionsWithViews},
		{"Sessions with carts", s.Funnel.SessionsWithCarts},
		{"Sessions with purchases", s.Funnel.SessionsWithPurchases},
		{"View to cart rate", s.Funnel.ViewToCart},
		{"Cart to purchase rate", s.Funnel.CartToPurchase},
		{"View to purchase rate", s.Funnel.ViewToPurchase},
		{"Total revenue", s.Revenue.TotalRevenue},
		{"Average order value", s.Revenue.AvgOrderValue},
		{"Top 20% users revenue share", s.Revenue.Top20PctShare},
		{"Abandoned sessions", s.Revenue.AbandonedSessions},
		{"Recoverable cart revenue", s.Revenue.AbandonmentRevenue},
		{"Loyal users", s.Segmentation.Loyalty.LoyalUserCount},
		{"Casual users", s.Segmentation.Loyalty.CasualUserCount},
		{"Weekend conversion", s.Temporal.WeekendConversionRate},
		{"Weekday conversion", s.Temporal.WeekdayConversionRate},
	}
	return &sheetContent{
		name:     sheetExecutive,
		headers:  []interface{}{"Metric", "Value"},
		rows:     rows,
		colWidth: 32,
		lastCol:  "B",
	}
}

func userSheet(users []featdomain.UserRow) *sheetContent {
	rows := make([][]interface{}, 0, min(len(users), maxDetailRows))
	for _, u := range users {
		if len(rows) == maxDetailRows {
			break
		}
		rows = append(rows, []interface{}{
			u.UserID, u.TotalSessions, u.TotalViews, u.TotalCarts, u.TotalPurchases,
			u.TotalRevenue, u.ViewToPurchaseRate, u.PurchasesPerSession, u.IsLoyal,
		})
	}
	return &sheetContent{
		name: sheetUsers,
		headers: []interface{}{
			"user_id", "total_sessions", "total_views", "total_carts", "total_purchases",
			"total_revenue", "view_to_purchase_rate", "purchases_per_session", "is_loyal",
		},
		rows:     rows,
		colWidth: 20,
		lastCol:  "I",
	}
}

func sessionSheet(sessions []featdomain.SessionRow) *sheetContent {
	rows := make([][]interface{}, 0, min(len(sessions), maxDetailRows))
	for _, s := range sessions {
		if len(rows) == maxDetailRows {
			break
		}
		rows = append(rows, []interface{}{
			s.SessionKey, s.UserID, s.Brand, s.CategoryCode,
			s.ViewCount, s.CartCount, s.PurchaseCount,
			s.DurationSeconds, s.Revenue, s.ViewToPurchaseRate, s.IsWeekend,
		})
	}
	return &sheetContent{
		name: sheetSessions,
		headers: []interface{}{
			"session_key", "user_id", "brand", "category_code",
			"view_count", "cart_count", "purchase_count",
			"duration_seconds", "revenue", "view_to_purchase_rate", "is_weekend",
		},
		rows:     rows,
		colWidth: 18,
		lastCol:  "K",
	}
}

func entitySheet(name, keyHeader string, entities []featdomain.EntityRow) *sheetContent {
	rows := make([][]interface{}, 0, min(len(entities), maxDetailRows))
	for _, e := range entities {
		if len(rows) == maxDetailRows {
			break
		}
		rows = append(rows, []interface{}{
			e.Key, e.ViewCount, e.CartCount, e.PurchaseCount,
			e.Revenue, e.ViewToCartRate, e.ViewToPurchaseRate,
		})
	}
	return &sheetContent{
		name: name,
		headers: []interface{}{
			keyHeader, "view_count", "cart_count", "purchase_count",
			"revenue", "view_to_cart_rate", "view_to_purchase_rate",
		},
		rows:     rows,
		colWidth: 20,
		lastCol:  "G",
	}
}

func temporalSheet(t insightdomain.TemporalSummary) *sheetContent {
	var rows [][]interface{}
	for _, h := range t.Hourly {
		rows = append(rows, []interface{}{"hour", h.Hour, h.SessionCount, h.AvgConversion, nil})
	}
	for _, p := range t.TimePeriods {
		rows = append(rows, []interface{}{"period", p.Period, p.SessionCount, p.AvgConversion, p.AvgSpending})
	}
	for _, m := range t.Monthly {
		rows = append(rows, []interface{}{"month", m.Bucket, m.SessionCount, m.AvgConversion, m.Revenue})
	}
	for _, q := range t.Quarterly {
		rows = append(rows, []interface{}{"quarter", q.Bucket, q.SessionCount, q.AvgConversion, q.Revenue})
	}
	return &sheetContent{
		name:     sheetTemporal,
		headers:  []interface{}{"granularity", "bucket", "session_count", "avg_conversion", "revenue_or_spending"},
		rows:     rows,
		colWidth: 22,
		lastCol:  "E",
	}
}

// recoverySheet liste les sessions abandonnées triées par valeur panier
func recoverySheet(sessions []featdomain.SessionRow, r insightdomain.RevenueSummary) *sheetContent {
	abandoned := make([]featdomain.SessionRow, 0)
	for _, s := range sessions {
		if s.IsAbandoned() {
			abandoned = append(abandoned, s)
		}
	}
	sortSessionsByCartValue(abandoned)

	rows := [][]interface{}{
		{"TOTAL", "", r.AbandonedSessions, r.AbandonmentRevenue},
	}
	for _, s := range abandoned {
		if len(rows) == maxDetailRows+1 {
			break
		}
		rows = append(rows, []interface{}{s.SessionKey, s.UserID, s.CartCount, s.CartValue})
	}
	return &sheetContent{
		name:     sheetRecovery,
		headers:  []interface{}{"session_key", "user_id", "cart_count", "cart_value"},
		rows:     rows,
		colWidth: 24,
		lastCol:  "D",
	}
}

func insightSheet(insights []insightdomain.InsightRecord) *sheetContent {
	rows := make([][]interface{}, 0, len(insights))
	for _, ins := range insights {
		rows = append(rows, []interface{}{
			ins.Name, ins.Message, ins.Value,
			ins.WindowStart.Format(featdomain.TimeLayout),
			ins.WindowEnd.Format(featdomain.TimeLayout),
		})
	}
	return &sheetContent{
		name:     sheetInsights,
		headers:  []interface{}{"name", "message", "value", "window_start", "window_end"},
		rows:     rows,
		colWidth: 40,
		lastCol:  "E",
	}
}

func sortSessionsByCartValue(sessions []featdomain.SessionRow) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CartValue != sessions[j].CartValue {
			return sessions[i].CartValue > sessions[j].CartValue
		}
		return sessions[i].SessionKey < sessions[j].SessionKey
	})
}
