package main

import "github.com/pfrederiksen/events-watch/internal/cli"

func main() {
	cli.Execute()
}
