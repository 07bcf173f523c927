package main

import "github.com/MeKo-Tech/petalscan/cmd/petalscan/cmd"

func main() {
	cmd.Execute()
}
