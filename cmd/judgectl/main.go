package main

import "codeclash/cmd/judgectl/cmd"

func main() {
	cmd.Execute()
}
