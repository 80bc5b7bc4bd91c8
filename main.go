package main

import "github.com/mpapenbr/telemetry-replay/cmd"

func main() {
	cmd.Execute()
}
