package main

import "github.com/q-controller/mediarelay/src/mediarelayd/cmd"

func main() {
	cmd.Execute()
}
