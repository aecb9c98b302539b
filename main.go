package main

import "github.com/frahmantamala/fleet-expense/cmd"

func main() {
	cmd.Execute()
}
