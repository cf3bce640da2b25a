package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"eddisonso.com/go-qfs/internal/clientcli"
)

func main() {
	if err := clientcli.Run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
