package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"clickpulse/database"

	"github.com/joho/godotenv"
)

func main() {
	// Charge .env
	err := godotenv.Load()
	if err != nil {
		log.Println("Attention: fichier .env non trouvé, utilisation des valeurs par défaut")
	}

	// Connexion PostgreSQL
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "clickpulse"),
		getEnv("DB_PASSWORD", "clickpulse"),
		getEnv("DB_NAME", "clickpulse"),
		getEnv("DB_SSLMODE", "disable"),
	)

	err = database.Init(connStr)
	if err != nil {
		log.Fatal("❌ Erreur connexion DB:", err)
	}
	defer database.Close()

	fmt.Println("✅ Connexion PostgreSQL établie")

	users, _ := strconv.Atoi(getEnv("SEED_USERS", "500"))
	sessionsPerUser, _ := strconv.Atoi(getEnv("SEED_SESSIONS_PER_USER", "3"))

	fmt.Println("🌱 Démarrage du seed de la base de données...")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	err = database.SeedDatabase(users, sessionsPerUser)
	if err != nil {
		log.Fatal("❌ Erreur lors du seed:", err)
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("✅ Seed terminé avec succès!")
	fmt.Println()
	fmt.Println("Vous pouvez maintenant lancer un run avec:")
	fmt.Println("  go run main.go -source postgres")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
