// Command authctl calls auth and user service methods from the shell:
//
//	authctl --config authsvc.yaml call auth register email=a%40b.com password=secret1
package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-auth-service/internal/cli"
)

func main() {
	app := cli.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
