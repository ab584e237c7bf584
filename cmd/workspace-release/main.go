// Command workspace-release is the CLI for the workspace version-bump
// engine: changeset management, release planning, and release application
// over a JS/TS monorepo.
package main

import "os"

func main() {
	os.Exit(Execute())
}
