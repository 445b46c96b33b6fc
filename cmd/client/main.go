package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/cardkeeper/internal/client/cli"
	"github.com/dmitrijs2005/cardkeeper/internal/client/config"
)

func main() {

	cfg := config.LoadConfig()
	app := cli.NewApp(cfg, os.Stdin, os.Stdout, os.Stderr)

	if err := app.Execute(context.Background(), os.Args[1:]); err != nil {
		os.Exit(1)
	}

}
