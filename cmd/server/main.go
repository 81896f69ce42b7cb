package main

import "github.com/rungomx/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
