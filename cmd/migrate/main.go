package main

import (
	"log"
	"os"

	"marketplace-be/internal/model"
	"marketplace-be/pkg/database"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	color.Cyan("Starting Authoritative GORM Migration...")

	// 3. Pre-Migration: Extensions & Enums (Things GORM AutoMigrate doesn't do)
	color.Yellow("Step 1: Setting up Extensions and Enums...")

	setupSQL := []string{
		// Extensions
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,

		// Enums (Idempotent creation)
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'chat_session_status') THEN CREATE TYPE chat_session_status AS ENUM ('waiting', 'active', 'resolved', 'closed'); END IF; END $$;`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'chat_message_type') THEN CREATE TYPE chat_message_type AS ENUM ('text', 'image', 'file', 'system'); END IF; END $$;`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'chat_sender_role') THEN CREATE TYPE chat_sender_role AS ENUM ('customer', 'support', 'admin', 'system'); END IF; END $$;`,
	}

	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate All Models
	color.Yellow("Step 2: Running AutoMigrate for chat tables...")

	models := []interface{}{
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.MessageAttachment{},
		&model.MessageReadReceipt{},
		&model.TypingIndicator{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: supporting indexes AutoMigrate can't express
	color.Yellow("Step 3: Creating supporting indexes...")

	postMigrationSQL := []string{
		// Queue scans: waiting/active sessions by recency
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_status_created ON chat_sessions (status, created_at DESC);`,
		// Customer inbox ordering
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_customer_last_message ON chat_sessions (customer_id, last_message_at DESC NULLS LAST);`,
		// Thread history pagination
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session_created ON chat_messages (session_id, created_at DESC);`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v. Continuing...", err)
		}
	}

	color.Green("Migration completed successfully.")
}
