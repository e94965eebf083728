package main

import "github.com/AzielCF/postpilot/cmd"

func main() {
	cmd.Execute()
}
