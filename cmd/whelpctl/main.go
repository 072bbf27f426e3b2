package main

import "github.com/mcoot/regwhelp/internal/cli"

func main() {
	cli.Execute()
}
