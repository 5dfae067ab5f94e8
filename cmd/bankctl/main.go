package main

import "bank-assistant/internal/cli"

func main() {
	cli.Execute()
}
