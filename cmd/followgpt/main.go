package main

import (
	"os"

	"github.com/LetsVenture2021/FollowGPT/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
