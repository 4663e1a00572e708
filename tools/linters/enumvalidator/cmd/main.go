package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"chatconnect.app/assistant/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
