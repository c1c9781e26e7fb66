// Package main provides the entry point for the civicmap CLI.
//
// civicmap runs the civic issue reporting API and offers operator commands
// for querying the heatmap, reading report histories, managing officials
// and minting access tokens.
//
// Usage:
//
//	civicmap serve
//	civicmap nearby 12.905,77.605 --radius 5
//	civicmap history <report-id> --format markdown
//
// See --help for all available options.
package main

func main() {
	Execute()
}
