package main

import "worldpanel/internal/cli"

func main() {
	cli.Execute()
}
