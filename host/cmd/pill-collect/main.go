package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pillbox/host/collector"
	"pillbox/host/serial"
	"pillbox/protocol"
)

var (
	device  = flag.String("device", "/dev/rfcomm0", "RFCOMM or serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for RFCOMM)")
	wait    = flag.Duration("wait", 10*time.Second, "How long 'wait' blocks for a batch")
	verbose = flag.Bool("verbose", false, "Print every record as it arrives")
)

func main() {
	flag.Parse()

	fmt.Println("Pill Collect - Record Export Reader")
	fmt.Println("===================================")
	fmt.Println()

	coll := collector.New()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Connecting to %s...\n", *device)
	if err := coll.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer coll.Close()

	fmt.Println("Connected successfully!")
	fmt.Println("Long-press a button on the device to push its records.")

	// Interactive command loop
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "wait":
			if err := waitBatch(coll); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "poll":
			n := coll.Drain()
			fmt.Printf("Merged %d pending batches\n", n)

		case "summary":
			coll.Drain()
			coll.PrintSummary(os.Stdout)

		case "dump":
			coll.Drain()
			printRecords(coll.Records())

		case "json":
			coll.Drain()
			if err := writeJSON(coll, parts[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "clear":
			coll.Clear()
			fmt.Println("Cleared")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  wait           - Block until the device sends a batch")
	fmt.Println("  poll           - Merge batches received in the background")
	fmt.Println("  summary        - Print counts of collected records")
	fmt.Println("  dump           - Print every collected record")
	fmt.Println("  json [file]    - Write records as JSON (stdout by default)")
	fmt.Println("  clear          - Forget collected records")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println()
}

func waitBatch(coll *collector.Collector) error {
	fmt.Printf("Waiting up to %v for a batch...\n", *wait)

	before := len(coll.Records())
	n, err := coll.Wait(*wait)
	if err != nil {
		return err
	}

	fmt.Printf("Received %d records (%d new)\n", n, len(coll.Records())-before)
	if *verbose {
		printRecords(coll.Records())
	}
	return nil
}

func printRecords(records []protocol.Record) {
	for _, r := range records {
		fmt.Printf("  %10d ms  value=%d\n", r.Timestamp, r.Value)
	}
	fmt.Printf("(%d records)\n", len(records))
}

func writeJSON(coll *collector.Collector, args []string) error {
	if len(args) == 0 {
		return coll.WriteJSON(os.Stdout)
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}
	defer f.Close()

	if err := coll.WriteJSON(f); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", args[0])
	return nil
}
