package main

import "github.com/MOYARU/smarttest/cmd"

func main() {
	cmd.Execute()
}
