package main

import (
	"os"

	"github.com/GrayareaGaming/source-console-shell/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:]))
}
