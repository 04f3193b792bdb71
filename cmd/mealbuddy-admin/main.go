// Package main provides the mealbuddy-admin CLI tool for operating the backend.
package main

import (
	"os"

	"github.com/sirosfoundation/mealbuddy-backend/cmd/mealbuddy-admin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
