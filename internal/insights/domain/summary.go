package domain

import "time"

// Summary regroupe toutes les sections d'analyse d'un run
// Recalculé intégralement à chaque run, jamais mis à jour en place
type Summary struct {
	Funnel             FunnelSummary             `json:"funnel"`
	Segmentation       SegmentationSummary       `json:"segmentation"`
	Temporal           TemporalSummary           `json:"temporal"`
	ProductPerformance ProductPerformanceSummary `json:"product_performance"`
	Revenue            RevenueSummary            `json:"revenue"`
	Advanced           AdvancedSummary           `json:"advanced"`
	Insights           []InsightRecord           `json:"insights"`
}

// InsightRecord représente une métrique nommée avec sa valeur et la
// fenêtre temporelle source
type InsightRecord struct {
	Name        string    `json:"name"`
	Message     string    `json:"message"`
	Value       float64   `json:"value"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// FunnelSummary décrit la progression vue → panier → achat au niveau session
type FunnelSummary struct {
	TotalSessions         int `json:"total_sessions"`
	SessionsWithViews     int `json:"sessions_with_views"`
	SessionsWithCarts     int `json:"sessions_with_carts"`
	SessionsWithPurchases int `json:"sessions_with_purchases"`

	ViewToCart     float64 `json:"view_to_cart"`
	CartToPurchase float64 `json:"cart_to_purchase"`
	ViewToPurchase float64 `json:"view_to_purchase"`

	DurationBucketConversion []BucketConversion `json:"duration_bucket_conversion"`
}

// BucketConversion taux de conversion moyen d'un bucket de sessions
type BucketConversion struct {
	Bucket        string  `json:"bucket"`
	SessionCount  int     `json:"session_count"`
	AvgConversion float64 `json:"avg_conversion"`
}

// SegmentStat statistiques agrégées d'un segment d'utilisateurs
type SegmentStat struct {
	Segment                string  `json:"segment"`
	UserCount              int     `json:"user_count"`
	AvgTotalSpending       float64 `json:"avg_total_spending_per_user"`
	AvgTotalSessions       float64 `json:"avg_total_sessions_per_user"`
	AvgConversionRate      float64 `json:"avg_conversion_rate"`
	AvgPurchasesPerSession float64 `json:"avg_purchases_per_session"`
}

// LoyaltySummary comparaison utilisateurs fidèles / occasionnels
type LoyaltySummary struct {
	LoyalUserCount       int     `json:"loyal_user_count"`
	CasualUserCount      int     `json:"casual_user_count"`
	LoyalUserAvgSpend    float64 `json:"loyal_user_avg_spend"`
	CasualUserAvgSpend   float64 `json:"casual_user_avg_spend"`
	LoyalConversionRate  float64 `json:"loyal_conversion_rate"`
	CasualConversionRate float64 `json:"casual_conversion_rate"`
}

// SegmentationSummary segmentation LTV des utilisateurs
type SegmentationSummary struct {
	SpendingSegments []SegmentStat  `json:"spending_segments"`
	ActivityLevels   []SegmentStat  `json:"activity_levels"`
	Loyalty          LoyaltySummary `json:"loyalty"`
}

// HourlyStat activité et conversion d'une heure de la journée
type HourlyStat struct {
	Hour          int     `json:"hour"`
	SessionCount  int     `json:"session_count"`
	AvgConversion float64 `json:"avg_conversion"`
}

// PeriodStat activité d'une tranche horaire
type PeriodStat struct {
	Period        string  `json:"period"`
	SessionCount  int     `json:"session_count"`
	AvgConversion float64 `json:"avg_conversion"`
	AvgSpending   float64 `json:"avg_spending"`
}

// MonthStat rollup mensuel ou trimestriel
type MonthStat struct {
	Bucket        int     `json:"bucket"`
	SessionCount  int     `json:"session_count"`
	Revenue       float64 `json:"revenue"`
	AvgConversion float64 `json:"avg_conversion"`
}

// TemporalSummary motifs temporels d'activité et de conversion
type TemporalSummary struct {
	WeekendConversionRate float64 `json:"weekend_conversion_rate"`
	WeekdayConversionRate float64 `json:"weekday_conversion_rate"`

	Hourly      []HourlyStat `json:"hourly"`
	TimePeriods []PeriodStat `json:"time_periods"`
	Monthly     []MonthStat  `json:"monthly"`
	Quarterly   []MonthStat  `json:"quarterly"`

	PeakActivityHour    int `json:"peak_activity_hour"`
	BestConversionHour  int `json:"best_conversion_hour"`
	PeakRevenueMonth    int `json:"peak_revenue_month"`
	PeakConversionMonth int `json:"peak_conversion_month"`
}

// EntityPerf performance d'une marque ou catégorie
type EntityPerf struct {
	Key             string  `json:"key"`
	Revenue         float64 `json:"revenue"`
	ConversionRate  float64 `json:"conversion_rate"`
	EfficiencyScore float64 `json:"efficiency_score"`
}

// ProductPerformanceSummary performance marques et catégories
type ProductPerformanceSummary struct {
	TopBrands              []EntityPerf `json:"top_brands"`
	AvgBrandConversion     float64      `json:"avg_brand_conversion"`
	HighConvertingBrands   int          `json:"high_converting_brands_count"`
	TopEfficientBrands     []EntityPerf `json:"top_efficient_brands"`
	Underperforming        []string     `json:"underperforming"`
	TopCategories          []EntityPerf `json:"top_categories"`
	AvgCategoryConversion  float64      `json:"avg_category_conversion"`
	TopEfficientCategories []EntityPerf `json:"top_efficient_categories"`
}

// BucketCount effectif d'un bucket de valeur de commande
type BucketCount struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// BucketRevenue revenu agrégé d'un quintile d'utilisateurs
type BucketRevenue struct {
	Bucket  string  `json:"bucket"`
	Revenue float64 `json:"revenue"`
}

// RevenueSummary concentration du revenu et opportunités de récupération
type RevenueSummary struct {
	TotalRevenue           float64         `json:"total_revenue"`
	RevenueSessions        int             `json:"revenue_generating_sessions"`
	AvgOrderValue          float64         `json:"avg_order_value"`
	Top10UsersRevenue      float64         `json:"top_10_users_revenue"`
	Top10Share             float64         `json:"top_10_pct"`
	Top20PctShare          float64         `json:"top_20_pct_of_user_revenue"`
	AbandonedSessions      int             `json:"abandoned_sessions"`
	AbandonmentRevenue     float64         `json:"abandonment_revenue_potential"`
	OrderValueDistribution []BucketCount   `json:"order_value_distribution"`
	SpendQuintiles         []BucketRevenue `json:"spend_quintiles"`
}

// QualityStat statistiques d'une classe de qualité de session
type QualityStat struct {
	Quality       string  `json:"quality"`
	SessionCount  int     `json:"session_count"`
	AvgConversion float64 `json:"avg_conversion"`
	AvgSpending   float64 `json:"avg_spending"`
}

// AdvancedSummary analyses croisées multi-marques et qualité de session
type AdvancedSummary struct {
	MultiBrandConversion    float64        `json:"multi_brand_conversion"`
	SingleBrandConversion   float64        `json:"single_brand_conversion"`
	MultiBrandAOV           float64        `json:"multi_brand_aov"`
	SingleBrandAOV          float64        `json:"single_brand_aov"`
	MultiCategoryConversion float64        `json:"multi_category_conversion"`
	QualitySplit            []QualityStat  `json:"quality_analysis"`
	Loyalty                 LoyaltySummary `json:"loyalty"`
}

// RunSummary enveloppe versionnée écrite sous le tag du run
type RunSummary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Tag         string    `json:"tag"`
	DroppedRows int       `json:"dropped_rows"`
	Summary     Summary   `json:"summary"`
}
