// Command ralph repeatedly runs an AI coding agent against a task list until
// the agent reports that every story is done.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		fatal(err)
		os.Exit(1)
	}
}
