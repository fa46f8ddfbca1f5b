package application

import (
	"errors"
	"fmt"
	"sort"

	"clickpulse/internal/config"
	eventsdomain "clickpulse/internal/events/domain"
	featdomain "clickpulse/internal/features/domain"
	"clickpulse/internal/insights/domain"
	shareddomain "clickpulse/internal/shared/domain"
)

// Libellés des buckets d'analyse
var (
	durationBucketLabels = []string{"<1min", "1-5min", "5-15min", ">15min"}
	durationBucketBounds = []float64{1, 5, 15} // minutes, borne haute incluse

	orderValueLabels = []string{"Small", "Medium", "Large", "Premium"}
	orderValueBounds = []float64{25, 100, 500}

	activityLabels = []string{"One-time", "Casual", "Regular", "Power"}
	activityBounds = []float64{1, 5, 10} // sessions, borne haute incluse

	spendingSegmentLabels = []string{"Low Nonzero", "Mid Nonzero", "High Nonzero", "Top Nonzero"}
	revenueQuintileLabels = []string{"Bottom 20%", "Low 20%", "Middle 20%", "High 20%", "Top 20%"}

	periodOrder = []string{"Night", "Morning", "Afternoon", "Evening"}
)

// Engine calcule les Insight Records depuis les quatre tables de
// features et les seuils configurés
// Tous les seuils viennent de la configuration: en changer un ne
// demande aucune modification de code
type Engine struct {
	cfg config.Config
}

// NewEngine crée un moteur d'insights
func NewEngine(cfg config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Generate calcule le résumé complet d'un run
// baseline est le résumé d'un run précédent pour la comparaison, nil sinon
func (e *Engine) Generate(t featdomain.Tables, baseline *domain.RunSummary) (domain.Summary, error) {
	if len(t.Sessions) == 0 || len(t.Users) == 0 {
		return domain.Summary{}, errors.New("empty feature tables")
	}

	window, err := observedWindow(t.Sessions)
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		Funnel:             e.computeFunnel(t.Sessions),
		Segmentation:       e.computeSegmentation(t.Users),
		Temporal:           computeTemporal(t.Sessions),
		ProductPerformance: e.computeProductPerformance(t.Brands, t.Categories),
		Revenue:            computeRevenue(t.Sessions, t.Users),
		Advanced:           e.computeAdvanced(t.Sessions, t.Users),
	}
	summary.Insights = e.buildRecords(summary, window, baseline)

	return summary, nil
}

// observedWindow borne la fenêtre temporelle couverte par les sessions
func observedWindow(sessions []featdomain.SessionRow) (shareddomain.DateRange, error) {
	start := sessions[0].StartedAt
	end := sessions[0].EndedAt
	for _, s := range sessions[1:] {
		if s.StartedAt.Before(start) {
			start = s.StartedAt
		}
		if s.EndedAt.After(end) {
			end = s.EndedAt
		}
	}
	return shareddomain.NewDateRange(start, end)
}

// computeFunnel calcule la progression vue → panier → achat
func (e *Engine) computeFunnel(sessions []featdomain.SessionRow) domain.FunnelSummary {
	f := domain.FunnelSummary{TotalSessions: len(sessions)}

	for _, s := range sessions {
		if s.ViewCount > 0 {
			f.SessionsWithViews++
		}
		if s.CartCount > 0 {
			f.SessionsWithCarts++
		}
		if s.PurchaseCount > 0 {
			f.SessionsWithPurchases++
		}
	}

	f.ViewToCart = shareddomain.NewRatio(float64(f.SessionsWithCarts), float64(f.SessionsWithViews)).Value()
	f.CartToPurchase = shareddomain.NewRatio(float64(f.SessionsWithPurchases), float64(f.SessionsWithCarts)).Value()
	f.ViewToPurchase = shareddomain.NewRatio(float64(f.SessionsWithPurchases), float64(f.SessionsWithViews)).Value()

	// Conversion moyenne par bucket de durée, durée plafonnée au seuil
	// d'inactivité de session
	maxMinutes := e.cfg.MaxSessionGap.Minutes()
	counts := make([]int, len(durationBucketLabels))
	sums := make([]float64, len(durationBucketLabels))
	for _, s := range sessions {
		minutes := s.DurationSeconds / 60
		if minutes > maxMinutes {
			minutes = maxMinutes
		}
		i := bucketIndex(minutes, durationBucketBounds)
		counts[i]++
		sums[i] += s.ViewToPurchaseRate
	}
	for i, label := range durationBucketLabels {
		f.DurationBucketConversion = append(f.DurationBucketConversion, domain.BucketConversion{
			Bucket:        label,
			SessionCount:  counts[i],
			AvgConversion: safeDiv(sums[i], float64(counts[i])),
		})
	}

	return f
}

// computeSegmentation segmente les utilisateurs par dépense et activité
func (e *Engine) computeSegmentation(users []featdomain.UserRow) domain.SegmentationSummary {
	var seg domain.SegmentationSummary

	// Segments de dépense: Zero Spender à part, quartiles sur le reste
	segments := map[string][]featdomain.UserRow{}
	var nonZero []featdomain.UserRow
	for _, u := range users {
		if u.TotalRevenue > 0 {
			nonZero = append(nonZero, u)
		} else {
			segments["Zero Spender"] = append(segments["Zero Spender"], u)
		}
	}
	sort.SliceStable(nonZero, func(i, j int) bool {
		if nonZero[i].TotalRevenue != nonZero[j].TotalRevenue {
			return nonZero[i].TotalRevenue < nonZero[j].TotalRevenue
		}
		return nonZero[i].UserID < nonZero[j].UserID
	})
	for i, u := range nonZero {
		label := spendingSegmentLabels[i*len(spendingSegmentLabels)/len(nonZero)]
		segments[label] = append(segments[label], u)
	}

	order := append([]string{"Zero Spender"}, spendingSegmentLabels...)
	for _, label := range order {
		group := segments[label]
		if len(group) == 0 {
			continue
		}
		seg.SpendingSegments = append(seg.SpendingSegments, segmentStat(label, group))
	}

	// Niveaux d'activité par nombre de sessions
	levels := map[string][]featdomain.UserRow{}
	for _, u := range users {
		label := activityLabels[bucketIndex(float64(u.TotalSessions), activityBounds)]
		levels[label] = append(levels[label], u)
	}
	for _, label := range activityLabels {
		group := levels[label]
		if len(group) == 0 {
			continue
		}
		seg.ActivityLevels = append(seg.ActivityLevels, segmentStat(label, group))
	}

	seg.Loyalty = e.loyaltySummary(users)

	return seg
}

// loyaltySummary compare fidèles et occasionnels
// Un utilisateur est fidèle ssi total_sessions >= seuil configuré
func (e *Engine) loyaltySummary(users []featdomain.UserRow) domain.LoyaltySummary {
	var loyal, casual []featdomain.UserRow
	for _, u := range users {
		if u.IsLoyal {
			loyal = append(loyal, u)
		} else {
			casual = append(casual, u)
		}
	}

	return domain.LoyaltySummary{
		LoyalUserCount:       len(loyal),
		CasualUserCount:      len(casual),
		LoyalUserAvgSpend:    meanUsers(loyal, func(u featdomain.UserRow) float64 { return u.TotalRevenue }),
		CasualUserAvgSpend:   meanUsers(casual, func(u featdomain.UserRow) float64 { return u.TotalRevenue }),
		LoyalConversionRate:  meanUsers(loyal, func(u featdomain.UserRow) float64 { return u.ViewToPurchaseRate }),
		CasualConversionRate: meanUsers(casual, func(u featdomain.UserRow) float64 { return u.ViewToPurchaseRate }),
	}
}

// computeTemporal calcule les motifs horaires, journaliers et mensuels
func computeTemporal(sessions []featdomain.SessionRow) domain.TemporalSummary {
	var t domain.TemporalSummary

	var weekendSum, weekdaySum float64
	var weekendN, weekdayN int

	hourCounts := make([]int, 24)
	hourSums := make([]float64, 24)
	periodCounts := map[string]int{}
	periodConvSums := map[string]float64{}
	periodSpendSums := map[string]float64{}
	monthCounts := map[int]int{}
	monthRevenue := map[int]float64{}
	monthConvSums := map[int]float64{}
	quarterCounts := map[int]int{}
	quarterRevenue := map[int]float64{}
	quarterConvSums := map[int]float64{}

	for _, s := range sessions {
		if s.IsWeekend {
			weekendSum += s.ViewToPurchaseRate
			weekendN++
		} else {
			weekdaySum += s.ViewToPurchaseRate
			weekdayN++
		}

		hour := s.StartedAt.Hour()
		hourCounts[hour]++
		hourSums[hour] += s.ViewToPurchaseRate

		period := string(eventsdomain.PeriodForHour(hour))
		periodCounts[period]++
		periodConvSums[period] += s.ViewToPurchaseRate
		periodSpendSums[period] += s.Revenue

		month := int(s.StartedAt.Month())
		monthCounts[month]++
		monthRevenue[month] += s.Revenue
		monthConvSums[month] += s.ViewToPurchaseRate

		quarter := (month-1)/3 + 1
		quarterCounts[quarter]++
		quarterRevenue[quarter] += s.Revenue
		quarterConvSums[quarter] += s.ViewToPurchaseRate
	}

	t.WeekendConversionRate = safeDiv(weekendSum, float64(weekendN))
	t.WeekdayConversionRate = safeDiv(weekdaySum, float64(weekdayN))

	for hour := 0; hour < 24; hour++ {
		if hourCounts[hour] == 0 {
			continue
		}
		t.Hourly = append(t.Hourly, domain.HourlyStat{
			Hour:          hour,
			SessionCount:  hourCounts[hour],
			AvgConversion: hourSums[hour] / float64(hourCounts[hour]),
		})
	}

	for _, period := range periodOrder {
		n := periodCounts[period]
		if n == 0 {
			continue
		}
		t.TimePeriods = append(t.TimePeriods, domain.PeriodStat{
			Period:        period,
			SessionCount:  n,
			AvgConversion: periodConvSums[period] / float64(n),
			AvgSpending:   periodSpendSums[period] / float64(n),
		})
	}

	for month := 1; month <= 12; month++ {
		n := monthCounts[month]
		if n == 0 {
			continue
		}
		t.Monthly = append(t.Monthly, domain.MonthStat{
			Bucket:        month,
			SessionCount:  n,
			Revenue:       monthRevenue[month],
			AvgConversion: monthConvSums[month] / float64(n),
		})
	}

	for quarter := 1; quarter <= 4; quarter++ {
		n := quarterCounts[quarter]
		if n == 0 {
			continue
		}
		t.Quarterly = append(t.Quarterly, domain.MonthStat{
			Bucket:        quarter,
			SessionCount:  n,
			Revenue:       quarterRevenue[quarter],
			AvgConversion: quarterConvSums[quarter] / float64(n),
		})
	}

	// Heures et mois de pointe
	t.PeakActivityHour = argmaxHourly(t.Hourly, func(h domain.HourlyStat) float64 { return float64(h.SessionCount) })
	t.BestConversionHour = argmaxHourly(t.Hourly, func(h domain.HourlyStat) float64 { return h.AvgConversion })
	t.PeakRevenueMonth = argmaxMonth(t.Monthly, func(m domain.MonthStat) float64 { return m.Revenue })
	t.PeakConversionMonth = argmaxMonth(t.Monthly, func(m domain.MonthStat) float64 { return m.AvgConversion })

	return t
}

// computeProductPerformance classe marques et catégories
func (e *Engine) computeProductPerformance(brands, categories []featdomain.EntityRow) domain.ProductPerformanceSummary {
	var p domain.ProductPerformanceSummary

	p.TopBrands = topByRevenue(brands, 10)
	p.AvgBrandConversion = meanEntities(brands)
	for _, b := range brands {
		if b.ViewToPurchaseRate > e.cfg.HighConvertingBrandThreshold {
			p.HighConvertingBrands++
		}
	}
	p.TopEfficientBrands = topByEfficiency(brands, 5)

	p.TopCategories = topByRevenue(categories, 5)
	p.AvgCategoryConversion = meanEntities(categories)
	p.TopEfficientCategories = topByEfficiency(categories, 3)

	// Alerte funnel: entités sous le seuil de conversion vue → achat
	for _, b := range brands {
		if b.ViewCount > 0 && b.ViewToPurchaseRate < e.cfg.LowFunnelAlertThreshold {
			p.Underperforming = append(p.Underperforming, "brand:"+b.Key)
		}
	}
	for _, c := range categories {
		if c.ViewCount > 0 && c.ViewToPurchaseRate < e.cfg.LowFunnelAlertThreshold {
			p.Underperforming = append(p.Underperforming, "category:"+c.Key)
		}
	}

	return p
}

// computeRevenue analyse la concentration du revenu et la récupération
func computeRevenue(sessions []featdomain.SessionRow, users []featdomain.UserRow) domain.RevenueSummary {
	var r domain.RevenueSummary

	orderCounts := make([]int, len(orderValueLabels))
	var revenueSum float64
	for _, s := range sessions {
		revenueSum += s.Revenue
		if s.Revenue > 0 {
			r.RevenueSessions++
			orderCounts[bucketIndex(s.Revenue, orderValueBounds)]++
		}
		if s.IsAbandoned() {
			r.AbandonedSessions++
			// Estimation best-effort: somme des prix des articles mis
			// au panier dans les sessions abandonnées
			r.AbandonmentRevenue += s.CartValue
		}
	}
	r.TotalRevenue = revenueSum
	r.AvgOrderValue = safeDiv(revenueSum, float64(r.RevenueSessions))

	for i, label := range orderValueLabels {
		r.OrderValueDistribution = append(r.OrderValueDistribution, domain.BucketCount{
			Bucket: label,
			Count:  orderCounts[i],
		})
	}

	// Tri décroissant par dépense, égalités départagées par user_id
	// croissant (tri stable, résultat déterministe)
	bySpend := make([]featdomain.UserRow, len(users))
	copy(bySpend, users)
	sort.SliceStable(bySpend, func(i, j int) bool {
		if bySpend[i].TotalRevenue != bySpend[j].TotalRevenue {
			return bySpend[i].TotalRevenue > bySpend[j].TotalRevenue
		}
		return bySpend[i].UserID < bySpend[j].UserID
	})

	var totalUserRevenue float64
	for _, u := range bySpend {
		totalUserRevenue += u.TotalRevenue
	}

	topN := 10
	if topN > len(bySpend) {
		topN = len(bySpend)
	}
	for _, u := range bySpend[:topN] {
		r.Top10UsersRevenue += u.TotalRevenue
	}
	r.Top10Share = safeDiv(r.Top10UsersRevenue, totalUserRevenue)

	// Part du top 20% des utilisateurs par effectif
	top20 := len(bySpend) * 20 / 100
	if top20 < 1 {
		top20 = 1
	}
	var top20Revenue float64
	for _, u := range bySpend[:top20] {
		top20Revenue += u.TotalRevenue
	}
	r.Top20PctShare = safeDiv(top20Revenue, totalUserRevenue)

	// Quintiles de dépense sur les utilisateurs à dépense non nulle
	var spenders []featdomain.UserRow
	for i := len(bySpend) - 1; i >= 0; i-- { // ordre croissant
		if bySpend[i].TotalRevenue > 0 {
			spenders = append(spenders, bySpend[i])
		}
	}
	if len(spenders) > 0 {
		quintiles := make([]float64, len(revenueQuintileLabels))
		for i, u := range spenders {
			quintiles[i*len(revenueQuintileLabels)/len(spenders)] += u.TotalRevenue
		}
		for i, label := range revenueQuintileLabels {
			r.SpendQuintiles = append(r.SpendQuintiles, domain.BucketRevenue{
				Bucket:  label,
				Revenue: quintiles[i],
			})
		}
	}

	return r
}

// computeAdvanced analyses croisées multi-marques et qualité de session
func (e *Engine) computeAdvanced(sessions []featdomain.SessionRow, users []featdomain.UserRow) domain.AdvancedSummary {
	var a domain.AdvancedSummary

	var multiBrand, singleBrand, multiCategory []featdomain.SessionRow
	for _, s := range sessions {
		if s.UniqueBrands > 1 {
			multiBrand = append(multiBrand, s)
		} else if s.UniqueBrands == 1 {
			singleBrand = append(singleBrand, s)
		}
		if s.UniqueCategories > 1 {
			multiCategory = append(multiCategory, s)
		}
	}

	a.MultiBrandConversion = meanSessions(multiBrand, func(s featdomain.SessionRow) float64 { return s.ViewToPurchaseRate })
	a.SingleBrandConversion = meanSessions(singleBrand, func(s featdomain.SessionRow) float64 { return s.ViewToPurchaseRate })
	a.MultiBrandAOV = meanRevenueSessions(multiBrand)
	a.SingleBrandAOV = meanRevenueSessions(singleBrand)
	a.MultiCategoryConversion = meanSessions(multiCategory, func(s featdomain.SessionRow) float64 { return s.ViewToPurchaseRate })

	// Qualité: durée au-dessus de la médiane, assez de vues, au moins
	// une marque identifiée
	median := medianDuration(sessions)
	var high, low []featdomain.SessionRow
	for _, s := range sessions {
		if s.DurationSeconds > median && s.ViewCount >= 3 && s.UniqueBrands >= 1 {
			high = append(high, s)
		} else {
			low = append(low, s)
		}
	}
	for _, split := range []struct {
		label string
		group []featdomain.SessionRow
	}{{"High", high}, {"Low", low}} {
		if len(split.group) == 0 {
			continue
		}
		a.QualitySplit = append(a.QualitySplit, domain.QualityStat{
			Quality:       split.label,
			SessionCount:  len(split.group),
			AvgConversion: meanSessions(split.group, func(s featdomain.SessionRow) float64 { return s.ViewToPurchaseRate }),
			AvgSpending:   meanSessions(split.group, func(s featdomain.SessionRow) float64 { return s.Revenue }),
		})
	}

	a.Loyalty = e.loyaltySummary(users)

	return a
}

// ---- helpers ----

// bucketIndex classe une valeur dans des buckets à bornes hautes incluses
func bucketIndex(v float64, bounds []float64) int {
	for i, bound := range bounds {
		if v <= bound {
			return i
		}
	}
	return len(bounds)
}

// safeDiv divise en retournant 0 sur dénominateur nul
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func segmentStat(label string, group []featdomain.UserRow) domain.SegmentStat {
	return domain.SegmentStat{
		Segment:                label,
		UserCount:              len(group),
		AvgTotalSpending:       meanUsers(group, func(u featdomain.UserRow) float64 { return u.TotalRevenue }),
		AvgTotalSessions:       meanUsers(group, func(u featdomain.UserRow) float64 { return float64(u.TotalSessions) }),
		AvgConversionRate:      meanUsers(group, func(u featdomain.UserRow) float64 { return u.ViewToPurchaseRate }),
		AvgPurchasesPerSession: meanUsers(group, func(u featdomain.UserRow) float64 { return u.PurchasesPerSession }),
	}
}

func meanUsers(users []featdomain.UserRow, value func(featdomain.UserRow) float64) float64 {
	if len(users) == 0 {
		return 0
	}
	var sum float64
	for _, u := range users {
		sum += value(u)
	}
	return sum / float64(len(users))
}

func meanSessions(sessions []featdomain.SessionRow, value func(featdomain.SessionRow) float64) float64 {
	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sessions {
		sum += value(s)
	}
	return sum / float64(len(sessions))
}

// meanRevenueSessions moyenne du revenu des seules sessions acheteuses
func meanRevenueSessions(sessions []featdomain.SessionRow) float64 {
	var sum float64
	var n int
	for _, s := range sessions {
		if s.Revenue > 0 {
			sum += s.Revenue
			n++
		}
	}
	return safeDiv(sum, float64(n))
}

func meanEntities(entities []featdomain.EntityRow) float64 {
	if len(entities) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entities {
		sum += e.ViewToPurchaseRate
	}
	return sum / float64(len(entities))
}

func medianDuration(sessions []featdomain.SessionRow) float64 {
	durations := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		durations = append(durations, s.DurationSeconds)
	}
	sort.Float64s(durations)
	n := len(durations)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return durations[n/2]
	}
	return (durations[n/2-1] + durations[n/2]) / 2
}

func topByRevenue(entities []featdomain.EntityRow, limit int) []domain.EntityPerf {
	sorted := make([]featdomain.EntityRow, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Revenue != sorted[j].Revenue {
			return sorted[i].Revenue > sorted[j].Revenue
		}
		return sorted[i].Key < sorted[j].Key
	})
	if limit > len(sorted) {
		limit = len(sorted)
	}

	out := make([]domain.EntityPerf, 0, limit)
	for _, e := range sorted[:limit] {
		out = append(out, domain.EntityPerf{
			Key:             e.Key,
			Revenue:         e.Revenue,
			ConversionRate:  e.ViewToPurchaseRate,
			EfficiencyScore: e.ViewToPurchaseRate * e.Revenue,
		})
	}
	return out
}

func topByEfficiency(entities []featdomain.EntityRow, limit int) []domain.EntityPerf {
	perfs := make([]domain.EntityPerf, 0, len(entities))
	for _, e := range entities {
		perfs = append(perfs, domain.EntityPerf{
			Key:             e.Key,
			Revenue:         e.Revenue,
			ConversionRate:  e.ViewToPurchaseRate,
			EfficiencyScore: e.ViewToPurchaseRate * e.Revenue,
		})
	}
	sort.SliceStable(perfs, func(i, j int) bool {
		if perfs[i].EfficiencyScore != perfs[j].EfficiencyScore {
			return perfs[i].EfficiencyScore > perfs[j].EfficiencyScore
		}
		return perfs[i].Key < perfs[j].Key
	})
	if limit > len(perfs) {
		limit = len(perfs)
	}
	return perfs[:limit]
}

func argmaxHourly(stats []domain.HourlyStat, value func(domain.HourlyStat) float64) int {
	best := -1
	bestValue := 0.0
	for _, h := range stats {
		if best == -1 || value(h) > bestValue {
			best = h.Hour
			bestValue = value(h)
		}
	}
	return best
}

func argmaxMonth(stats []domain.MonthStat, value func(domain.MonthStat) float64) int {
	best := -1
	bestValue := 0.0
	for _, m := range stats {
		if best == -1 || value(m) > bestValue {
			best = m.Bucket
			bestValue = value(m)
		}
	}
	return best
}

// fmtPct formate un taux en pourcentage pour les messages d'insight
func fmtPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
