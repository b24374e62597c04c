package main

import "github.com/i474232898/weather-now/internal/cli"

func main() {
	cli.Execute()
}
