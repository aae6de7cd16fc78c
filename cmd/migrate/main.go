package main

import (
	"log"

	"longevity-chat-be/internal/config"
	"longevity-chat-be/internal/model"
	"longevity-chat-be/pkg/database"
)

func main() {
	cfg := config.Load()

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	log.Println("Running migrations...")
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.ChatSession{},
		&model.ChatMessage{},
	); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("✅ Migrations completed")
}
