package main

import "github.com/icco/keysynth/cmd"

func main() {
	cmd.Execute()
}
