package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"chatconnect.app/assistant/tools/linters/eventswitch"
)

func main() {
	singlechecker.Main(eventswitch.Analyzer)
}
