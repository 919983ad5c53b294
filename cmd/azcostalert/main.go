package main

import "azure-cost-alerts/internal/cli"

func main() {
	cli.Execute()
}
