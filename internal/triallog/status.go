package triallog

import (
	"fmt"

	"github.com/scorefuse/scorefuse/schema"
)

// PrintStoreStatus prints the trial store summary for the status subcommand.
func PrintStoreStatus(status schema.StoreStatus) {
	fmt.Printf("Store Backend: %s\n", status.Backend)
	fmt.Printf("Studies: %d\n", status.Studies)
	fmt.Printf("Trials: %d\n", status.Trials)
}
