package main

import (
	"fmt"
	"os"

	llmuxcmder "github.com/papercomputeco/llmux/cmd/llmux"
	"github.com/papercomputeco/llmux/pkg/cliui"
)

func main() {
	cmd := llmuxcmder.NewLLMuxCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", cliui.FailMark, cliui.ErrorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
