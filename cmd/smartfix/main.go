/*
Package main is the entry point for the smartfix CLI.

smartfix is a self-learning troubleshooting assistant for consumer devices.
It answers from a local knowledge store when a trusted solution exists, falls
back to fresh model analysis and web search otherwise, and learns from every
interaction and piece of feedback.

Usage:

	smartfix [command]

Available Commands:

	serve       Run the MCP server (stdio transport)
	http        Run the REST API server
	ask         Diagnose a device problem
	search      List stored solutions matching a query
	related     Find related stored problems
	add         Store a solution
	feedback    Report whether an answer fixed the problem
	stats       Show knowledge and learning statistics
	export      Export all stored solutions as JSON
	init        Write a default config file
	version     Show version information

Examples:

	# Ask a question
	smartfix ask "TV screen is black but power light is on"

	# Run as MCP server
	smartfix serve
*/
package main

import (
	"fmt"
	"os"

	"github.com/khanglvm/smartfix/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
