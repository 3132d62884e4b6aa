package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retail-backend/internal/config"
	"retail-backend/internal/database"
	"retail-backend/internal/server"

	"github.com/joho/godotenv"
)

var migrateOnly = flag.Bool("migrate-only", false, "Migration ve developer seed çalıştır, sonra çık")

func main() {
	flag.Parse()
	// .env yoksa environment değişkenleri kullanılır
	_ = godotenv.Load()

	cfg := config.Load()
	database.Init(cfg)
	if *migrateOnly {
		log.Println("Migration tamamlandı, çıkılıyor.")
		return
	}

	app := server.NewApp(cfg)

	go func() {
		log.Printf("Sunucu dinleniyor :%s", cfg.HTTPPort)
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.Fatalf("Sunucu hatası: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Kapatma sinyali alındı")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Kapatma sırasında hata: %v", err)
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Println("Sunucu düzgün şekilde durduruldu")
}
