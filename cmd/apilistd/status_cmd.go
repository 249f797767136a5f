// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/asankah/chromium-api-list/internal/jobs"
)

// runStatusCLI queries a running daemon for its last update outcome.
func runStatusCLI(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "base URL of the running daemon")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	asJSON := fs.Bool("json", false, "print the raw JSON status")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	client := http.Client{Timeout: *timeout}
	resp, err := client.Get(*addr + "/api/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemon not reachable: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "status request failed: %s\n", resp.Status)
		return 1
	}

	var status jobs.Status
	dec := json.NewDecoder(resp.Body)
	if *asJSON {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			fmt.Fprintf(os.Stderr, "bad status response: %v\n", err)
			return 1
		}
		fmt.Println(string(raw))
		return 0
	}
	if err := dec.Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "bad status response: %v\n", err)
		return 1
	}

	if status.LastRun.IsZero() {
		fmt.Println("No update has run yet.")
		return 0
	}
	fmt.Printf("Last update: %s (%s)\n", status.LastRun.Format(time.RFC3339), status.Duration)
	if status.Error != "" {
		fmt.Printf("Result: FAILED: %s\n", status.Error)
		return 1
	}
	fmt.Printf("Entries: %d (%d high entropy, %d interfaces)\n",
		status.Entries, status.HighEntropy, status.Interfaces)
	if status.Revision != "" {
		fmt.Printf("Source revision: %s\n", status.Revision)
	}
	if status.CommitPosition != "" {
		fmt.Printf("Commit position: %s\n", status.CommitPosition)
	}
	fmt.Printf("Delta: +%d -%d ~%d\n", status.Added, status.Removed, status.Changed)
	if status.Committed {
		fmt.Println("Committed to target repository.")
	}
	return 0
}
