package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lawnchairsociety/sockclient/test"
)

func main() {
	tcpAddr := flag.String("tcp", "localhost:8080", "Line server TCP address (empty to skip)")
	udpAddr := flag.String("udp", "localhost:8080", "Line server UDP address (empty to skip)")
	verbose := flag.Bool("v", false, "Verbose output - show detailed actions for each test")
	flag.Parse()

	// Set verbose mode
	test.Verbose = *verbose

	fmt.Printf("Running integration tests against tcp=%q udp=%q\n", *tcpAddr, *udpAddr)
	fmt.Println("Make sure the line server is running!")
	if *verbose {
		fmt.Println("Verbose mode enabled - showing detailed test actions")
	}
	fmt.Println()

	results := test.RunAllTests(test.Targets{TCP: *tcpAddr, UDP: *udpAddr})
	test.PrintResults(results)

	// Exit with error code if any tests failed
	for _, result := range results {
		if !result.Passed {
			os.Exit(1)
		}
	}
}
