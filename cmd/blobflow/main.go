package main

import (
	"context"
	"fmt"
	"os"

	"github.com/walrusagents/blobflow/cmd/blobflow/cli"
	"github.com/walrusagents/blobflow/pkg/errors"
	"github.com/walrusagents/blobflow/pkg/logtrace"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	defer errors.Recover(func(cause error) {
		logtrace.Error(context.Background(), "blobflow panicked", logtrace.Fields{
			logtrace.FieldError: cause.Error(),
			"stack":             errors.Stack(cause),
		})
		logtrace.Sync()
		os.Exit(2)
	})

	if err := cli.Execute(Version, GitCommit, BuildTime); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		logtrace.Sync()
		os.Exit(1)
	}
	logtrace.Sync()
}
