package main

import (
	"flag"
	"os"
	"testing"
)

// resetFlags gives each test a clean flag.CommandLine, mirroring the
// teacher's main_test.go approach to re-testing parseArguments under
// different os.Args without cross-test flag-registration panics.
func resetFlags() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
}

func TestParseArgumentsRequiresSourceAndDestination(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	resetFlags()
	os.Args = []string{"unpackr", "--source", "/downloads/complete"}
	if _, err := parseArguments(); err == nil {
		t.Fatalf("expected an error when --destination is missing")
	}

	resetFlags()
	os.Args = []string{"unpackr", "--destination", "/media/videos"}
	if _, err := parseArguments(); err == nil {
		t.Fatalf("expected an error when --source is missing")
	}
}

func TestParseArgumentsNoFlagsReturnsNilConfigNoError(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	resetFlags()
	os.Args = []string{"unpackr"}

	cli, err := parseArguments()
	if err != nil {
		t.Fatalf("expected no error for a bare invocation, got %v", err)
	}
	if cli != nil {
		t.Fatalf("expected a nil config for a bare invocation, got %+v", cli)
	}
}

func TestParseArgumentsRejectsPositionalArguments(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	resetFlags()
	os.Args = []string{"unpackr", "--source", "/a", "--destination", "/b", "extra-arg"}

	if _, err := parseArguments(); err == nil {
		t.Fatalf("expected an error for unexpected positional arguments")
	}
}

func TestParseArgumentsAcceptsFullFlagSet(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	resetFlags()
	os.Args = []string{
		"unpackr",
		"--source", "/downloads/complete",
		"--destination", "/media/videos",
		"--dry-run",
		"--plan-only",
		"--verbose",
	}

	cli, err := parseArguments()
	if err != nil {
		t.Fatalf("parseArguments: %v", err)
	}
	if cli == nil {
		t.Fatalf("expected a non-nil config")
	}
	if cli.SourceRoot != "/downloads/complete" || cli.DestinationRoot != "/media/videos" {
		t.Fatalf("unexpected roots: %+v", cli)
	}
	if !cli.DryRun || !cli.PlanOnly || !cli.Verbose {
		t.Fatalf("expected dry-run, plan-only, and verbose all set: %+v", cli)
	}
}

func TestPrintPlanHandlesEmptyPlan(t *testing.T) {
	// printPlan must never panic on an empty plan; this is the "nothing
	// to do" exit-0 path named in spec §6.
	printPlan(nil)
}
