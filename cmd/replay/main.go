package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/inertial_initializer/internal/app"
	"github.com/relabs-tech/inertial_initializer/internal/config"
)

func main() {
	configPath := flag.String("config", "./inertial_config.txt", "path to configuration file")
	inputPath := flag.String("input", "", "path to recorded IMU sample log (CSV: t,gx,gy,gz,ax,ay,az)")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing -input: path to a recorded IMU sample log")
	}

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunReplay(*inputPath); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
