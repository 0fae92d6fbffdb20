package main

import "github.com/relloyd/scdpipe/cmd"

func main() {
	cmd.Execute()
}
