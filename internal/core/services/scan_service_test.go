package services

import (
	"context"
	"strings"
	"testing"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"github.com/hkoosha/ec2ssh/internal/core/ports"
	"go.uber.org/zap/zaptest"
)

func newTestScanService(t *testing.T, executor ports.CommandExecutor) *scanService {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	conn := NewConnectionService(logger)
	ssh := newTestSSHService(t, executor)
	return NewScanService(logger, executor, conn, ssh)
}

func scanConfig() domain.Config {
	cfg := domain.DefaultConfig()
	cfg.ScanRules = []domain.ScanRule{
		{
			Name:            "web-rule",
			MatchConditions: domain.MatchConditions{"name_contains": "web"},
			ScanPaths:       []string{"/var/www", "~/"},
			ScanCommands:    []string{"docker ps"},
		},
	}
	return cfg
}

func runningInstance() domain.Instance {
	return domain.Instance{
		ID:       "i-web01",
		Name:     "web-01",
		State:    domain.StateRunning,
		PublicIP: "54.0.0.1",
	}
}

func TestScanConfigFor_MergesAndDeduplicates(t *testing.T) {
	svc := newTestScanService(t, &stubExecutor{})

	paths, commands := svc.ScanConfigFor(runningInstance(), scanConfig())
	// Default paths come first, then rule paths, with "~/" collapsed.
	wantPaths := []string{"~/", "/var/www"}
	assertArgv(t, paths, wantPaths)
	assertArgv(t, commands, []string{"docker ps"})
}

func TestScanConfigFor_NonMatchingRuleContributesNothing(t *testing.T) {
	svc := newTestScanService(t, &stubExecutor{})

	inst := runningInstance()
	inst.Name = "db-01"
	paths, commands := svc.ScanConfigFor(inst, scanConfig())
	assertArgv(t, paths, []string{"~/"})
	if len(commands) != 0 {
		t.Fatalf("expected no commands, got %v", commands)
	}
}

func TestScanInstance_SkipsNonRunningWithoutExecuting(t *testing.T) {
	exec := &stubExecutor{}
	svc := newTestScanService(t, exec)

	inst := runningInstance()
	inst.State = domain.StateStopped
	results := svc.ScanInstance(context.Background(), inst, scanConfig())
	if len(results) != 0 {
		t.Fatalf("expected no results for stopped instance, got %v", results)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("stopped instance must not trigger any ssh call, got %d", len(exec.calls))
	}
}

func TestScanInstance_NoConfigReturnsEmpty(t *testing.T) {
	exec := &stubExecutor{}
	svc := newTestScanService(t, exec)

	cfg := scanConfig()
	cfg.DefaultScanPaths = nil
	cfg.ScanRules = nil
	results := svc.ScanInstance(context.Background(), runningInstance(), cfg)
	if len(results) != 0 || len(exec.calls) != 0 {
		t.Fatalf("expected empty scan with no config, got %v / %d calls", results, len(exec.calls))
	}
}

func TestScanInstance_NoReachableHostReturnsEmpty(t *testing.T) {
	exec := &stubExecutor{}
	svc := newTestScanService(t, exec)

	inst := runningInstance()
	inst.PublicIP = ""
	inst.PrivateIP = ""
	results := svc.ScanInstance(context.Background(), inst, scanConfig())
	if len(results) != 0 || len(exec.calls) != 0 {
		t.Fatalf("expected empty scan without addresses, got %v / %d calls", results, len(exec.calls))
	}
}

func TestScanInstance_CollectsSuccessfulResults(t *testing.T) {
	exec := &stubExecutor{
		results: []ports.ExecResult{
			{ExitCode: 0, Stdout: "total 8\ndrwxr-xr-x app\n"},
			{ExitCode: 0, Stdout: "total 4\n"},
			{ExitCode: 0, Stdout: "CONTAINER ID  IMAGE\nabc123 nginx\n"},
		},
	}
	svc := newTestScanService(t, exec)

	results := svc.ScanInstance(context.Background(), runningInstance(), scanConfig())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %v", len(results), results)
	}
	if results[0].Source != "path:~/" {
		t.Errorf("expected first source path:~/, got %q", results[0].Source)
	}
	if results[1].Source != "path:/var/www" {
		t.Errorf("expected second source path:/var/www, got %q", results[1].Source)
	}
	if results[2].Source != "command:docker ps" {
		t.Errorf("expected command source, got %q", results[2].Source)
	}
	if results[2].Content != "CONTAINER ID  IMAGE\nabc123 nginx" {
		t.Errorf("expected trimmed content, got %q", results[2].Content)
	}

	// Paths run before commands, sequentially.
	if len(exec.calls) != 3 {
		t.Fatalf("expected 3 ssh invocations, got %d", len(exec.calls))
	}
	first := strings.Join(exec.calls[0], " ")
	if !strings.Contains(first, "ls -la") || !strings.Contains(first, "2>/dev/null") {
		t.Errorf("expected ls listing with discarded stderr, got %q", first)
	}
	last := exec.calls[2][len(exec.calls[2])-1]
	if last != "docker ps" {
		t.Errorf("expected verbatim remote command, got %q", last)
	}
}

func TestScanInstance_DropsNonzeroExitAndEmptyOutput(t *testing.T) {
	exec := &stubExecutor{
		results: []ports.ExecResult{
			{ExitCode: 2, Stdout: "ls: cannot access"},
			{ExitCode: 0, Stdout: "   \n"},
			{ExitCode: 1, Stdout: "", Stderr: "docker: command not found"},
		},
	}
	svc := newTestScanService(t, exec)

	results := svc.ScanInstance(context.Background(), runningInstance(), scanConfig())
	if len(results) != 0 {
		t.Fatalf("expected every probe to be dropped, got %v", results)
	}
	// Failures are isolated, not fatal: all three probes still ran.
	if len(exec.calls) != 3 {
		t.Fatalf("expected all 3 probes attempted, got %d", len(exec.calls))
	}
}

func TestScanInstance_UsesProfileProxy(t *testing.T) {
	exec := &stubExecutor{results: []ports.ExecResult{{ExitCode: 0, Stdout: "total 0\n"}}}
	svc := newTestScanService(t, exec)

	cfg := scanConfig()
	cfg.ScanRules = nil
	cfg.ConnectionProfiles = []domain.ConnectionProfile{{
		Name:        "via-bastion",
		BastionHost: "b.example.com",
		BastionUser: "ec2-user",
	}}
	cfg.ConnectionRules = []domain.ConnectionRule{{
		Name:            "web",
		MatchConditions: domain.MatchConditions{"name_contains": "web"},
		ProfileName:     "via-bastion",
	}}

	inst := runningInstance()
	inst.PrivateIP = "10.0.0.9"
	svc.ScanInstance(context.Background(), inst, cfg)

	if len(exec.calls) != 1 {
		t.Fatalf("expected one probe, got %d", len(exec.calls))
	}
	joined := strings.Join(exec.calls[0], " ")
	if !strings.Contains(joined, "-J ec2-user@b.example.com") {
		t.Errorf("expected jump through bastion, got %q", joined)
	}
	// Behind a bastion the private address is the target.
	if !strings.Contains(joined, "@10.0.0.9") {
		t.Errorf("expected private IP target, got %q", joined)
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"/var/www", "/var/www"},
		{"~/", "'~/'"},
		{"/path with spaces", "'/path with spaces'"},
		{"/tmp/$HOME", "'/tmp/$HOME'"},
		{"it's", `'it'"'"'s'`},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"a", "b", "a", "c", "b"})
	assertArgv(t, got, []string{"a", "b", "c"})
}
