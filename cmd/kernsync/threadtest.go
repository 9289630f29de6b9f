// threadtest.go implements the 'kernsync threadtest' and 'kernsync list'
// commands.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kolkov/kernsync/internal/threadtest"
	"github.com/kolkov/kernsync/kernel"
)

// threadTestConfig holds configuration for the threadtest command.
type threadTestConfig struct {
	// Test number or name (from -q)
	test string

	// Timer seed (from -rs); zero means cooperative scheduling
	randomSeed int64

	// Debug flags (from -d)
	debugFlags string

	// Buffer test items (from -n); zero means the default
	items int

	// Happens-before checking (-race)
	race bool

	// Do not yield between buffer items (-greedy)
	greedy bool
}

// threadTestCommand implements the 'kernsync threadtest' command.
//
// Example:
//
//	kernsync threadtest -q 2 -rs 42 -race
func threadTestCommand(args []string) {
	config, err := parseThreadTestArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := runThreadTest(config, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseThreadTestArgs parses command-line arguments for 'kernsync threadtest'.
//
// Flags taking a value accept both "-q 2" and "-q=2".
func parseThreadTestArgs(args []string) (*threadTestConfig, error) {
	config := &threadTestConfig{test: "1"}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "-race":
			config.race = true
			continue
		case "-greedy":
			config.greedy = true
			continue
		case "-q", "-rs", "-d", "-n":
		default:
			return nil, fmt.Errorf("unknown flag %q", arg)
		}

		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s flag requires an argument", name)
			}
			i++
			value = args[i]
		}

		switch name {
		case "-q":
			config.test = value
		case "-rs":
			seed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid -rs seed %q: %w", value, err)
			}
			config.randomSeed = seed
		case "-d":
			config.debugFlags = value
		case "-n":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid -n item count %q", value)
			}
			config.items = n
		}
	}

	return config, nil
}

// runThreadTest runs the configured test. Test output goes to out, kernel
// debug output and race reports to diag.
//
//nolint:errcheck // console output
func runThreadTest(config *threadTestConfig, out, diag io.Writer) error {
	test, err := threadtest.Lookup(config.test)
	if err != nil {
		return err
	}

	res, err := threadtest.Run(test, threadtest.Options{
		Kernel: kernel.Config{
			RandomSeed:    config.randomSeed,
			DebugFlags:    config.debugFlags,
			Output:        diag,
			RaceDetection: config.race,
		},
		Out:    out,
		Items:  config.items,
		Greedy: config.greedy,
	})
	if err != nil {
		return fmt.Errorf("thread test %d (%s): %w", test.Num, test.Name, err)
	}

	r := res.Report
	fmt.Fprintf(out, "Ticks: total %d, timer interrupts %d\n", r.Interrupts.TotalTicks, r.Interrupts.TimerInterrupts)
	fmt.Fprintf(out, "Threads: %d created, %d finished, %d context switches\n", r.Threads, len(r.Finished), r.Switches)
	if config.race {
		fmt.Fprintf(out, "Races: %d\n", r.Races)
	}
	return nil
}

// listCommand implements the 'kernsync list' command.
//
//nolint:errcheck // console output
func listCommand(out io.Writer) {
	for _, t := range threadtest.All() {
		fmt.Fprintf(out, "%2d  %-18s %s\n", t.Num, t.Name, t.Summary)
	}
}
