package database

import (
	"fmt"
	"math/rand"
	"time"
)

// Catalogue fictif pour la génération d'événements
var (
	seedBrands = []string{
		"samsung", "apple", "xiaomi", "huawei", "sony",
		"lg", "lenovo", "asus", "acer", "nokia",
	}

	seedCategories = []string{
		"electronics.smartphone", "electronics.audio.headphone",
		"electronics.video.tv", "computers.notebook", "computers.peripherals.mouse",
		"appliances.kitchen.refrigerator", "appliances.environment.vacuum",
		"furniture.living_room.sofa", "apparel.shoes", "",
	}

	seedEventTypes = []string{"view", "view", "view", "view", "cart", "cart", "purchase"}
)

// SeedDatabase peuple la table raw_events avec un clickstream synthétique
// userCount utilisateurs, environ sessionsPerUser sessions chacun
func SeedDatabase(userCount, sessionsPerUser int) error {
	fmt.Println("🌱 Création du schéma raw_events...")
	if err := EnsureSchema(); err != nil {
		return fmt.Errorf("erreur création schéma: %w", err)
	}

	fmt.Printf("🌱 Génération du clickstream pour %d utilisateurs...\n", userCount)

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("erreur ouverture transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO raw_events (user_id, user_session, event_type, product_id, brand, category_code, price, event_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("erreur préparation insert: %w", err)
	}
	defer stmt.Close()

	start := time.Now().UTC().AddDate(0, -3, 0)
	total := 0

	for u := 0; u < userCount; u++ {
		userID := fmt.Sprintf("user-%06d", u+1)
		sessions := 1 + rand.Intn(sessionsPerUser*2)

		for s := 0; s < sessions; s++ {
			sessionID := fmt.Sprintf("%s-session-%03d", userID, s+1)
			sessionStart := start.Add(time.Duration(rand.Int63n(int64(90 * 24 * time.Hour))))
			eventCount := 2 + rand.Intn(12)

			eventTime := sessionStart
			for e := 0; e < eventCount; e++ {
				eventTime = eventTime.Add(time.Duration(5+rand.Intn(240)) * time.Second)
				brand := seedBrands[rand.Intn(len(seedBrands))]
				category := seedCategories[rand.Intn(len(seedCategories))]
				price := 5.0 + rand.Float64()*995.0

				_, err := stmt.Exec(
					userID, sessionID,
					seedEventTypes[rand.Intn(len(seedEventTypes))],
					fmt.Sprintf("prod-%04d", rand.Intn(2000)+1),
					brand, category,
					float64(int(price*100))/100,
					eventTime,
				)
				if err != nil {
					tx.Rollback()
					return fmt.Errorf("erreur insertion événement: %w", err)
				}
				total++
			}
		}
	}

	// Quelques lignes invalides pour exercer le comptage des rejets
	invalid := [][]interface{}{
		{"", "orphan-session", "view", "prod-0001", "samsung", "electronics.smartphone", 10.0, time.Now().UTC()},
		{"user-000001", "user-000001-session-001", "click", "prod-0002", "apple", "", 10.0, time.Now().UTC()},
		{"user-000002", "user-000002-session-001", "view", "prod-0003", "sony", "", -5.0, time.Now().UTC()},
	}
	for _, row := range invalid {
		if _, err := stmt.Exec(row...); err != nil {
			tx.Rollback()
			return fmt.Errorf("erreur insertion ligne invalide: %w", err)
		}
		total++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("erreur commit: %w", err)
	}

	fmt.Printf("   ✅ %d événements insérés\n", total)

	fmt.Println("🔍 Analyse des tables...")
	if _, err := DB.Exec("ANALYZE raw_events"); err != nil {
		fmt.Println("⚠️ Attention: échec de l'analyse:", err)
	}

	return nil
}
