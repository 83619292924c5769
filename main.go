package main

import "github.com/markb/routinecat/cmd"

func main() {
	cmd.Execute()
}
