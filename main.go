package main

import (
	"luminakraft-launcher/cmd"
	"luminakraft-launcher/logger"
	"luminakraft-launcher/updater"

	_ "go.uber.org/automaxprocs"
)

func main() {
	logger.InitLogger() // Initialize the logger first
	defer logger.Sync()   // Ensure logs are flushed on exit
	updater.CleanupOld()
	cmd.Execute()
}
