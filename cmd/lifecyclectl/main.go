package main

import "github.com/magabrotheeeer/mealkit-lifecycle/internal/cli"

func main() {
	cli.Execute()
}
