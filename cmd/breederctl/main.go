package main

import (
	"context"

	"breederchat/cmd/breederctl/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
