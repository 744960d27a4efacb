package main

import "github.com/loomward/tilegen/cmd"

func main() {
	cmd.Execute()
}
