package main

import (
	"stemset/cmd"
)

func main() {
	cmd.Execute()
}
