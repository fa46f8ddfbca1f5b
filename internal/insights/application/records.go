package application

import (
	"fmt"

	"clickpulse/internal/insights/domain"
	shareddomain "clickpulse/internal/shared/domain"
)

// Noms stables des insights, utilisés comme clés de comparaison entre runs
const (
	InsightFunnelConversion     = "funnel_conversion"
	InsightCartAbandonment      = "cart_abandonment"
	InsightLoyaltyGap           = "loyalty_gap"
	InsightPeakHour             = "peak_hour"
	InsightTopBrand             = "top_brand"
	InsightRevenueConcentration = "revenue_concentration"
	InsightLowFunnelAlert       = "low_funnel_alert"
	InsightWeekendGap           = "weekend_gap"
	InsightZeroSpenders         = "zero_spenders"
	InsightConversionDrop       = "conversion_drop"
	InsightRevenueDrop          = "revenue_drop"
)

// buildRecords dérive les Insight Records actionnables du résumé
// Chaque record porte la fenêtre temporelle observée pour rester
// interprétable hors contexte
func (e *Engine) buildRecords(s domain.Summary, window shareddomain.DateRange, baseline *domain.RunSummary) []domain.InsightRecord {
	var records []domain.InsightRecord

	add := func(name, message string, value float64) {
		records = append(records, domain.InsightRecord{
			Name:        name,
			Message:     message,
			Value:       value,
			WindowStart: window.Start(),
			WindowEnd:   window.End(),
		})
	}

	add(InsightFunnelConversion,
		fmt.Sprintf("%s des sessions avec vues aboutissent à un achat", fmtPct(s.Funnel.ViewToPurchase)),
		s.Funnel.ViewToPurchase)

	if s.Funnel.SessionsWithCarts > 0 {
		abandonRate := shareddomain.NewRatio(float64(s.Revenue.AbandonedSessions), float64(s.Funnel.SessionsWithCarts)).Value()
		add(InsightCartAbandonment,
			fmt.Sprintf("%s des sessions avec panier sont abandonnées, soit %.2f de revenu récupérable",
				fmtPct(abandonRate), s.Revenue.AbandonmentRevenue),
			s.Revenue.AbandonmentRevenue)
	}

	if s.Segmentation.Loyalty.CasualUserAvgSpend > 0 {
		multiplier := s.Segmentation.Loyalty.LoyalUserAvgSpend / s.Segmentation.Loyalty.CasualUserAvgSpend
		add(InsightLoyaltyGap,
			fmt.Sprintf("les utilisateurs fidèles dépensent %.1fx plus que les occasionnels", multiplier),
			multiplier)
	}

	if s.Temporal.PeakActivityHour >= 0 {
		add(InsightPeakHour,
			fmt.Sprintf("pic d'activité à %dh, meilleure conversion à %dh",
				s.Temporal.PeakActivityHour, s.Temporal.BestConversionHour),
			float64(s.Temporal.PeakActivityHour))
	}

	if len(s.ProductPerformance.TopBrands) > 0 {
		top := s.ProductPerformance.TopBrands[0]
		add(InsightTopBrand,
			fmt.Sprintf("la marque %q génère %.2f de revenu à %s de conversion",
				top.Key, top.Revenue, fmtPct(top.ConversionRate)),
			top.Revenue)
	}

	add(InsightRevenueConcentration,
		fmt.Sprintf("le top 20%% des utilisateurs concentre %s du revenu", fmtPct(s.Revenue.Top20PctShare)),
		s.Revenue.Top20PctShare)

	if s.Temporal.WeekdayConversionRate > 0 {
		gap := s.Temporal.WeekendConversionRate/s.Temporal.WeekdayConversionRate - 1
		add(InsightWeekendGap,
			fmt.Sprintf("conversion week-end %s contre %s en semaine",
				fmtPct(s.Temporal.WeekendConversionRate), fmtPct(s.Temporal.WeekdayConversionRate)),
			gap)
	}

	if zero := zeroSpenderCount(s.Segmentation.SpendingSegments); zero > 0 {
		total := zero
		for _, seg := range s.Segmentation.SpendingSegments {
			if seg.Segment != "Zero Spender" {
				total += seg.UserCount
			}
		}
		share := shareddomain.NewRatio(float64(zero), float64(total)).Value()
		add(InsightZeroSpenders,
			fmt.Sprintf("%s des utilisateurs n'ont jamais acheté", fmtPct(share)),
			share)
	}

	if n := len(s.ProductPerformance.Underperforming); n > 0 {
		add(InsightLowFunnelAlert,
			fmt.Sprintf("%d entités sous le seuil de conversion de %s",
				n, fmtPct(e.cfg.LowFunnelAlertThreshold)),
			float64(n))
	}

	records = append(records, e.compareBaseline(s, window, baseline)...)

	return records
}

// zeroSpenderCount retourne l'effectif du segment sans achat
func zeroSpenderCount(segments []domain.SegmentStat) int {
	for _, seg := range segments {
		if seg.Segment == "Zero Spender" {
			return seg.UserCount
		}
	}
	return 0
}

// compareBaseline émet des alertes quand les métriques clés reculent
// de plus que le pourcentage configuré par rapport au run de référence
func (e *Engine) compareBaseline(s domain.Summary, window shareddomain.DateRange, baseline *domain.RunSummary) []domain.InsightRecord {
	if baseline == nil {
		return nil
	}

	var records []domain.InsightRecord
	alert := func(name, metric string, previous, current float64) {
		if previous <= 0 {
			return
		}
		drop := (previous - current) / previous
		if drop <= e.cfg.AlertDropPct {
			return
		}
		records = append(records, domain.InsightRecord{
			Name: name,
			Message: fmt.Sprintf("%s en baisse de %s par rapport au run %s (%.4f → %.4f)",
				metric, fmtPct(drop), baseline.Tag, previous, current),
			Value:       drop,
			WindowStart: window.Start(),
			WindowEnd:   window.End(),
		})
	}

	alert(InsightConversionDrop, "conversion vue → achat",
		baseline.Summary.Funnel.ViewToPurchase, s.Funnel.ViewToPurchase)
	alert(InsightRevenueDrop, "revenu total",
		baseline.Summary.Revenue.TotalRevenue, s.Revenue.TotalRevenue)

	return records
}
