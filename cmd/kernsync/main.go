// Package main implements the kernsync CLI tool.
//
// kernsync boots the simulated uniprocessor kernel and runs one of its
// thread tests: small producer/consumer and ping-pong programs that
// exercise the scheduler, semaphores, locks and condition variables.
//
// Usage:
//
//	kernsync threadtest -q 2            # Bounded buffer with semaphores
//	kernsync threadtest -q 3 -rs 42     # Condition buffer, seeded preemption
//	kernsync list                       # List thread tests
package main

import (
	"fmt"
	"os"

	"github.com/kolkov/kernsync/kernel"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "threadtest", "run":
		threadTestCommand(os.Args[2:])
	case "list":
		listCommand(os.Stdout)
	case "version", "--version", "-v":
		versionCommand(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// versionCommand prints the version. With an argument it also checks that
// this kernel satisfies the given version.
func versionCommand(args []string) {
	info := kernel.GetInfo()
	fmt.Printf("kernsync version %s\n", info.Version)
	if len(args) == 0 {
		return
	}
	if err := kernel.CheckCompatible(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`kernsync - synchronization primitives on a simulated uniprocessor

USAGE:
    kernsync <command> [arguments]

COMMANDS:
    threadtest   Run a thread test (default: test 1)
    list         List thread tests
    version      Show version information
    help         Show this help message

THREADTEST FLAGS:
    -q N|name    Select the thread test by number or name
    -rs seed     Preempt threads at random interrupt-enable points
    -d flags     Debug flags: t threads, i interrupts, s synch, r race, + all
    -n items     Items transferred by the buffer tests (default 10)
    -race        Check that shared data is ordered by the primitives
    -greedy      Do not yield after every buffer item

EXAMPLES:
    # Ping-pong between two threads
    kernsync threadtest

    # Bounded buffer with semaphores, checked for races
    kernsync threadtest -q semaphore-buffer -race

    # Condition-variable buffer under seeded preemption with thread tracing
    kernsync threadtest -q 3 -rs 7 -d t

`)
}
