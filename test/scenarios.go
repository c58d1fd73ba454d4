// Package test holds end-to-end scenarios that drive the client transports
// and session loop against a running line server.
package test

import (
	"fmt"
	"net"
	"strconv"

	"github.com/lawnchairsociety/sockclient/internal/address"
)

// Verbose controls whether detailed logging is shown during tests
var Verbose = false

// TestResult represents the result of a test
type TestResult struct {
	Name    string
	Passed  bool
	Message string
}

// Targets names the server endpoints under test. An empty address skips
// the scenarios for that transport.
type Targets struct {
	TCP string
	UDP string
}

// logAction logs a test action when verbose mode is enabled
func logAction(testName, action string) {
	if Verbose {
		fmt.Printf("  [%s] %s\n", testName, action)
	}
}

// logResult logs an expected vs actual result when verbose mode is enabled
func logResult(testName string, success bool, detail string) {
	if Verbose {
		status := "OK"
		if !success {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s: %s\n", testName, status, detail)
	}
}

func fail(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

func pass(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: true, Message: fmt.Sprintf(format, args...)}
}

// resolve turns a host:port target into an address the clients accept.
func resolve(target string) (address.Address, error) {
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		return address.Address{}, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return address.Address{}, err
	}
	return address.Parse(host, p)
}

// RunAllTests runs every scenario whose transport has a target.
func RunAllTests(targets Targets) []TestResult {
	results := make([]TestResult, 0)

	// Group 1: Connection-oriented transport
	if targets.TCP != "" {
		results = append(results, TestStreamCommands(targets.TCP))
		results = append(results, TestStreamConnectionPerMessage(targets.TCP))
		results = append(results, TestStreamSession(targets.TCP))
	}

	// Group 2: Connectionless transport
	if targets.UDP != "" {
		results = append(results, TestDatagramCommands(targets.UDP))
		results = append(results, TestDatagramSameSocket(targets.UDP))
		results = append(results, TestDatagramSession(targets.UDP))
	}

	// Group 3: Failure handling (local, needs no server)
	results = append(results, TestDatagramNoResponse())
	results = append(results, TestStreamRefused())

	return results
}

// PrintResults prints a summary of test results
func PrintResults(results []TestResult) {
	passed := 0
	failed := 0

	fmt.Println("============================================================")
	fmt.Println("Integration Test Results")
	fmt.Println("============================================================")
	fmt.Println()

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			failed++
		} else {
			passed++
		}
		fmt.Printf("[%s] %s: %s\n", status, r.Name, r.Message)
	}

	fmt.Println()
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Total: %d | Passed: %d | Failed: %d\n", len(results), passed, failed)
	fmt.Println("------------------------------------------------------------")
}
