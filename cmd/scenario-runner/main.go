// Package main runs the scripted scenario checks against the simulation
// engine with a synthetic clock. Balance changes to the drift tables or the
// device resolver should keep this green.
package main

import (
	"fmt"
	"os"

	"github.com/amornj/medsim-sub000/test"
)

func main() {
	fmt.Println("MEDSIM SCENARIO CHECKS")
	fmt.Println("======================")

	results := test.ScenarioChecks()
	report, allPassed := test.Summary(results)
	fmt.Println(report)

	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	fmt.Printf("passed %d/%d\n", passed, len(results))

	if !allPassed {
		os.Exit(1)
	}
}
