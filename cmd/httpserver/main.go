package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const release = "v0.1.0"

var rootCmd = &cobra.Command{
	Use:     "httpserver",
	Short:   "httpserver: registers services and dispatches HTTP requests to them.",
	Version: release,
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
