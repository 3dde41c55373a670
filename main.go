// Command mockmes runs the mock manufacturing execution system: an HTTP API
// over an in-memory routing catalog and SFC state machine, plus client,
// chat and report commands.
package main

import "mockmes/internal/cli"

func main() {
	cli.Execute()
}
