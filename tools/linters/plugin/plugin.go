package main

import (
	"golang.org/x/tools/go/analysis"

	"chatconnect.app/assistant/tools/linters/enumvalidator"
	"chatconnect.app/assistant/tools/linters/eventswitch"
)

type AnalyzerPlugin struct{}

func (*AnalyzerPlugin) GetAnalyzers() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		enumvalidator.Analyzer,
		eventswitch.Analyzer,
	}
}

func New(conf any) ([]*analysis.Analyzer, error) {
	return []*analysis.Analyzer{enumvalidator.Analyzer, eventswitch.Analyzer}, nil
}

func main() {}
