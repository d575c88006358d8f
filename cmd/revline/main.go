package main

import "os"

func main() {
	rootCmd.AddCommand(importCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
