package main

import (
	"flag"
	"log"

	"basket-service/config"
	"basket-service/migrations"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	steps := flag.Int("steps", 1, "Number of steps (only for down)")
	flag.Parse()

	cfg := config.Load()

	switch *direction {
	case "up":
		if err := migrations.Up(cfg.Database.URL); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migrations applied")
	case "down":
		if *steps <= 0 {
			*steps = 1
		}
		if err := migrations.Down(cfg.Database.URL, *steps); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Printf("Rolled back %d migration(s)", *steps)
	default:
		log.Fatalf("Unknown direction: %s (use 'up' or 'down')", *direction)
	}
}
