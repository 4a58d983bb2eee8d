package main

import "github.com/fooddiscovery/backend/internal/cli"

func main() {
	cli.Execute()
}
