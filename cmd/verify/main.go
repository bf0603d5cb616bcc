// The verify binary runs a one-shot supply consistency report against the
// hub, optionally reconciling a detected divergence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"mypts/internal/auth"
	"mypts/internal/hub"
	"mypts/internal/verifier"
	"mypts/pkg/config"
	"mypts/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	reconcileReason := flag.String("reconcile", "", "reconcile a detected inconsistency with this audit reason")
	flag.Parse()

	cfg := config.Load()
	token := os.Getenv("HUB_TOKEN")
	if token == "" {
		log.Fatal("HUB_TOKEN environment variable is required")
	}

	tokens := &auth.StaticProvider{AccessToken: token, Admin: true}
	client := hub.NewClient(cfg.Hub.BaseURL, cfg.Hub.Timeout, tokens, logger.NewNop())
	service := verifier.NewService(client, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Hub.Timeout)
	defer cancel()

	fmt.Println("=========================================================")
	fmt.Println("MYPTS SUPPLY CONSISTENCY REPORT")
	fmt.Printf("Time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Println("=========================================================")

	result, err := service.Verify(ctx)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}

	fmt.Printf("\n[1] Circulating Supply\n")
	fmt.Printf("    - Ledger: %d\n", result.LedgerCirculatingSupply)
	fmt.Printf("    - Actual: %d\n", result.ActualCirculatingSupply)

	fmt.Printf("\n[2] Classification\n")
	if result.IsConsistent {
		fmt.Println("    [PASS] Ledger matches the computed circulating supply.")
		return
	}

	fmt.Printf("    [FAIL] Difference of %d units detected.\n", result.Difference)
	if correction := verifier.PlanCorrection(result); correction != nil {
		fmt.Printf("    Corrective operation: %s %d\n", correction.Action, correction.Amount)
	}

	if *reconcileReason == "" {
		fmt.Println("\nRe-run with -reconcile \"<reason>\" to correct the divergence.")
		os.Exit(1)
	}

	state, message, err := service.Reconcile(ctx, *reconcileReason)
	if err != nil {
		log.Fatalf("Reconciliation failed: %v", err)
	}

	fmt.Printf("\n[3] Reconciliation\n")
	fmt.Printf("    Hub: %s\n", message)
	fmt.Printf("    Total: %d  Holding: %d  Reserve: %d  Circulating: %d\n",
		state.TotalSupply, state.HoldingSupply, state.ReserveSupply, state.CirculatingSupply)
}
