package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Утилита для ручного восстановления состояния миграций.
// Используется, когда миграция упала на середине и schema_migrations
// остался в dirty-состоянии.
func main() {
	forceVersion := flag.Int("force", -1, "версия, на которую принудительно выставить schema_migrations")
	down := flag.Bool("down", false, "откатить одну миграцию вместо force")
	flag.Parse()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		envOr("DATABASE_HOST", "localhost"),
		envOr("DATABASE_PORT", "5432"),
		envOr("DATABASE_USER", "postgres"),
		os.Getenv("DATABASE_PASSWORD"),
		envOr("DATABASE_DBNAME", "quizroom_db"),
		envOr("DATABASE_SSLMODE", "disable"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal(err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatal(err)
	}

	switch {
	case *down:
		fmt.Println("Откатываю одну миграцию...")
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Failed to rollback: %v", err)
		}
		fmt.Println("Откат выполнен.")
	case *forceVersion >= 0:
		fmt.Printf("Принудительно выставляю версию %d (сброс dirty-состояния)...\n", *forceVersion)
		if err := m.Force(*forceVersion); err != nil {
			log.Fatalf("Failed to force version: %v", err)
		}
		fmt.Println("Готово. Dirty-состояние сброшено, приложение можно запускать.")
	default:
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("Failed to read migration version: %v", err)
		}
		fmt.Printf("Текущая версия миграций: %d, dirty=%t\n", version, dirty)
		fmt.Println("Используйте -force N для сброса dirty-состояния или -down для отката.")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
