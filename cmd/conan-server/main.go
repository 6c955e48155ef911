package main

import (
	"context"
	"log"

	"github.com/conanshim/registry/internal/registry/config"
	"github.com/conanshim/registry/internal/registry/server"
)

func main() {

	ctx := context.Background()
	cfg := config.Load()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
