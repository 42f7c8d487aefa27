package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/umakantv/go-utils/db/migrations"

	"todo-service/config"
	"todo-service/server"
)

func main() {
	commandFlag := flag.String("command", "start", "Command to run modules")
	nameFlag := flag.String("name", "", "Migration name (alphanum+underscore only)")
	dirFlag := flag.String("dir", ".", "Target directory for the new .sql file (e.g. ./migrations)")
	flag.Parse()

	if *commandFlag == "" {
		fmt.Println("Usage: go run main.go --command <command-name> [... other options]")
		os.Exit(1)
	}

	switch *commandFlag {
	case "start":
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		if err := server.StartServer(cfg); err != nil {
			fmt.Fprintln(os.Stderr, "start:", err)
			os.Exit(1)
		}
	case "create-migration":
		migrations.CreateMigration(nameFlag, dirFlag)
	default:
		fmt.Printf("Unknown command %q (expected start or create-migration)\n", *commandFlag)
		os.Exit(1)
	}
}
