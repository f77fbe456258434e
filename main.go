package main

import "github.com/Yates-Labs/twin/cmd"

func main() {
	cmd.Execute()
}
