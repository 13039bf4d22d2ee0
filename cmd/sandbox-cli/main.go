// sandbox-cli runs a single script against a fresh sandbox and prints its
// outcome, the Go analogue of the reference host crate's hardcoded
// single-shot smoke test (crates/cli + crates/host's main()). It talks to
// no server and exists purely to exercise internal/sandbox in isolation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/oriys/sandboxd/internal/engine"
	"github.com/oriys/sandboxd/internal/sandbox"
)

func main() {
	var (
		script           string
		initScript       string
		maxBytes         uint64
		maxTableElements uint
		fuel             uint64
	)

	flag.StringVar(&script, "script", "\"Hello World\"", "JavaScript-flavored script to evaluate")
	flag.StringVar(&initScript, "init", "", "optional init script to run before -script")
	flag.Uint64Var(&maxBytes, "max-bytes", 50*1024*1024, "sandbox memory cap in bytes")
	flag.UintVar(&maxTableElements, "max-table-elements", 10_000, "sandbox table element cap")
	flag.Uint64Var(&fuel, "fuel", 440_000_000, "fuel units granted before evaluation")
	flag.Parse()

	if err := run(script, initScript, maxBytes, uint32(maxTableElements), fuel); err != nil {
		fmt.Fprintln(os.Stderr, "sandbox-cli:", err)
		os.Exit(1)
	}
}

func run(script, initScript string, maxBytes uint64, maxTableElements uint32, fuel uint64) error {
	ctx := context.Background()
	if err := engine.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap engine: %w", err)
	}

	sc, err := sandbox.New(ctx, sandbox.Limits{MaxBytes: maxBytes, MaxTableElements: maxTableElements})
	if err != nil {
		return fmt.Errorf("construct sandbox: %w", err)
	}
	defer sc.Close(ctx)

	if initScript != "" {
		sc.AddFuel(fuel)
		outcome := sc.Run(ctx, initScript)
		if outcome.Kind != sandbox.KindOk {
			return reportOutcome("init", outcome)
		}
		sc = outcome.Ctx
	}

	sc.AddFuel(fuel)
	outcome := sc.Run(ctx, script)
	return reportOutcome("script", outcome)
}

func reportOutcome(stage string, outcome sandbox.RunOutcome) error {
	switch outcome.Kind {
	case sandbox.KindOk:
		var pretty any
		if outcome.Result.Present() {
			_ = json.Unmarshal(outcome.Result.Value(), &pretty)
		}
		fmt.Printf("%s: ok present=%v result=%v\n", stage, outcome.Result.Present(), pretty)
		if outcome.Stdout != "" {
			fmt.Println("stdout:", outcome.Stdout)
		}
		if outcome.Stderr != "" {
			fmt.Println("stderr:", outcome.Stderr)
		}
		return nil
	case sandbox.KindRuntimeError:
		return fmt.Errorf("%s: runtime error: %s", stage, outcome.Message)
	case sandbox.KindOutOfFuel:
		return fmt.Errorf("%s: ran out of fuel", stage)
	case sandbox.KindOutOfMemory:
		return fmt.Errorf("%s: ran out of memory", stage)
	default:
		return fmt.Errorf("%s: unknown outcome %s", stage, outcome.Kind)
	}
}
