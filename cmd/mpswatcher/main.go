package main

import "pool-range-alerts/internal/cli"

func main() {
	cli.Execute()
}
