package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/trainingpay/internal/client/cli"
	"github.com/dmitrijs2005/trainingpay/internal/client/config"
)

func main() {
	cfg := config.LoadConfig()
	cli.NewApp(cfg, os.Stdin, os.Stdout).Run(context.Background())
}
