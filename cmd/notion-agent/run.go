package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyang0507/notion-agent/pkg/presenter"
)

var runCmd = &cobra.Command{
	Use:   "run <command line>",
	Short: "Execute one assistant command and print its output",
	Long: `Execute one assistant command directly, without the chat loop.

Examples:
  notion-agent run notion list
  notion-agent run notion draft '"Reading List"' '"---
name: Reading List
description: Track books
---
Default status: To Read"'`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		registry, err := buildRegistry(ctx)
		if err != nil {
			presenter.Error(err, "failed to initialize commands")
			return
		}

		output, err := registry.Execute(ctx, strings.Join(args, " "))
		if err != nil {
			presenter.Error(err, "command failed")
			return
		}
		fmt.Println(output)
	},
}
