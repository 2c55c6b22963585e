package main

import (
	"curseforge-mod-fetcher/cmd"
	"curseforge-mod-fetcher/logger"

	_ "go.uber.org/automaxprocs/maxprocs"
)

func main() {
	defer logger.Sync() // Ensure logs are flushed on exit
	cmd.Execute()
}
