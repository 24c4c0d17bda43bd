package main

import (
	"fmt"
	"os"

	"stakeledger/services/stakerd"
)

func main() {
	if err := stakerd.Main(); err != nil {
		fmt.Fprintf(os.Stderr, "stakerd: %v\n", err)
		os.Exit(1)
	}
}
