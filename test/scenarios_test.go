package test

import (
	"testing"

	"github.com/lawnchairsociety/sockclient/internal/config"
	"github.com/lawnchairsociety/sockclient/internal/lineserver"
)

func TestRunAllTests_AgainstLocalServer(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.TCPAddress = "127.0.0.1:0"
	cfg.UDPAddress = "127.0.0.1:0"

	srv := lineserver.New(cfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Shutdown()

	results := RunAllTests(Targets{TCP: srv.TCPAddr().String(), UDP: srv.UDPAddr().String()})
	if len(results) != 8 {
		t.Errorf("ran %d scenarios, want 8", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("%s failed: %s", r.Name, r.Message)
		}
	}
}

func TestRunAllTests_SkipsMissingTargets(t *testing.T) {
	results := RunAllTests(Targets{})
	if len(results) != 2 {
		t.Fatalf("ran %d scenarios, want only the 2 local ones", len(results))
	}
}
