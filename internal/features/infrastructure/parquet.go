package infrastructure

import (
	"fmt"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"clickpulse/internal/features/domain"
)

// Miroirs Parquet des tables de features
// Les timestamps sont stockés en millisecondes epoch (TIMESTAMP_MILLIS)

type parquetSessionRow struct {
	SessionKey         string  `parquet:"name=session_key, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	UserID             string  `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Brand              string  `parquet:"name=brand, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CategoryCode       string  `parquet:"name=category_code, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ViewCount          int32   `parquet:"name=view_count, type=INT32"`
	CartCount          int32   `parquet:"name=cart_count, type=INT32"`
	PurchaseCount      int32   `parquet:"name=purchase_count, type=INT32"`
	UniqueViewProducts int32   `parquet:"name=unique_view_products, type=INT32"`
	UniqueBrands       int32   `parquet:"name=unique_brands, type=INT32"`
	UniqueCategories   int32   `parquet:"name=unique_categories, type=INT32"`
	StartedAt          int64   `parquet:"name=started_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	EndedAt            int64   `parquet:"name=ended_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	DurationSeconds    float64 `parquet:"name=duration_seconds, type=DOUBLE"`
	Revenue            float64 `parquet:"name=revenue, type=DOUBLE"`
	CartValue          float64 `parquet:"name=cart_value, type=DOUBLE"`
	ViewToPurchaseRate float64 `parquet:"name=view_to_purchase_rate, type=DOUBLE"`
	IsWeekend          bool    `parquet:"name=is_weekend, type=BOOLEAN"`
}

type parquetUserRow struct {
	UserID              string  `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	TotalSessions       int32   `parquet:"name=total_sessions, type=INT32"`
	TotalViews          int32   `parquet:"name=total_views, type=INT32"`
	TotalCarts          int32   `parquet:"name=total_carts, type=INT32"`
	TotalPurchases      int32   `parquet:"name=total_purchases, type=INT32"`
	TotalRevenue        float64 `parquet:"name=total_revenue, type=DOUBLE"`
	AvgSessionDuration  float64 `parquet:"name=avg_session_duration_seconds, type=DOUBLE"`
	FirstSeen           int64   `parquet:"name=first_seen, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	LastSeen            int64   `parquet:"name=last_seen, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	ViewToPurchaseRate  float64 `parquet:"name=view_to_purchase_rate, type=DOUBLE"`
	PurchasesPerSession float64 `parquet:"name=purchases_per_session, type=DOUBLE"`
	IsLoyal             bool    `parquet:"name=is_loyal, type=BOOLEAN"`
}

type parquetEntityRow struct {
	Key                string  `parquet:"name=key, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ViewCount          int32   `parquet:"name=view_count, type=INT32"`
	CartCount          int32   `parquet:"name=cart_count, type=INT32"`
	PurchaseCount      int32   `parquet:"name=purchase_count, type=INT32"`
	Revenue            float64 `parquet:"name=revenue, type=DOUBLE"`
	ViewToCartRate     float64 `parquet:"name=view_to_cart_rate, type=DOUBLE"`
	ViewToPurchaseRate float64 `parquet:"name=view_to_purchase_rate, type=DOUBLE"`
}

// saveParquet écrit les quatre tables au format Parquet (Snappy)
func (s *ArtifactStore) saveParquet(t domain.Tables) error {
	sessions := make([]parquetSessionRow, 0, len(t.Sessions))
	for _, r := range t.Sessions {
		sessions = append(sessions, parquetSessionRow{
			SessionKey:         r.SessionKey,
			UserID:             r.UserID,
			Brand:              r.Brand,
			CategoryCode:       r.CategoryCode,
			ViewCount:          int32(r.ViewCount),
			CartCount:          int32(r.CartCount),
			PurchaseCount:      int32(r.PurchaseCount),
			UniqueViewProducts: int32(r.UniqueViewProducts),
			UniqueBrands:       int32(r.UniqueBrands),
			UniqueCategories:   int32(r.UniqueCategories),
			StartedAt:          r.StartedAt.UnixMilli(),
			EndedAt:            r.EndedAt.UnixMilli(),
			DurationSeconds:    r.DurationSeconds,
			Revenue:            r.Revenue,
			CartValue:          r.CartValue,
			ViewToPurchaseRate: r.ViewToPurchaseRate,
			IsWeekend:          r.IsWeekend,
		})
	}
	if err := writeParquetRows(filepath.Join(s.dir, "session_features.parquet"), new(parquetSessionRow), func(pw *writer.ParquetWriter) error {
		for i := range sessions {
			if err := pw.Write(sessions[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	users := make([]parquetUserRow, 0, len(t.Users))
	for _, r := range t.Users {
		users = append(users, parquetUserRow{
			UserID:              r.UserID,
			TotalSessions:       int32(r.TotalSessions),
			TotalViews:          int32(r.TotalViews),
			TotalCarts:          int32(r.TotalCarts),
			TotalPurchases:      int32(r.TotalPurchases),
			TotalRevenue:        r.TotalRevenue,
			AvgSessionDuration:  r.AvgSessionDurationSec,
			FirstSeen:           r.FirstSeen.UnixMilli(),
			LastSeen:            r.LastSeen.UnixMilli(),
			ViewToPurchaseRate:  r.ViewToPurchaseRate,
			PurchasesPerSession: r.PurchasesPerSession,
			IsLoyal:             r.IsLoyal,
		})
	}
	if err := writeParquetRows(filepath.Join(s.dir, "user_features.parquet"), new(parquetUserRow), func(pw *writer.ParquetWriter) error {
		for i := range users {
			if err := pw.Write(users[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	for name, rows := range map[string][]domain.EntityRow{
		"brand_features.parquet":    t.Brands,
		"category_features.parquet": t.Categories,
	} {
		entities := make([]parquetEntityRow, 0, len(rows))
		for _, r := range rows {
			entities = append(entities, parquetEntityRow{
				Key:                r.Key,
				ViewCount:          int32(r.ViewCount),
				CartCount:          int32(r.CartCount),
				PurchaseCount:      int32(r.PurchaseCount),
				Revenue:            r.Revenue,
				ViewToCartRate:     r.ViewToCartRate,
				ViewToPurchaseRate: r.ViewToPurchaseRate,
			})
		}
		if err := writeParquetRows(filepath.Join(s.dir, name), new(parquetEntityRow), func(pw *writer.ParquetWriter) error {
			for i := range entities {
				if err := pw.Write(entities[i]); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}

	return nil
}

// writeParquetRows écrit un fichier Parquet complet avec fermeture
// garantie sur tous les chemins de sortie
func writeParquetRows(path string, schema interface{}, write func(*writer.ParquetWriter) error) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, schema, 2)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	if err := write(pw); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}

	return fw.Close()
}
