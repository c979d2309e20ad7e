// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"github.com/spf13/cobra"

	"github.com/gogpu/framegraph"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [FILE]",
		Short: "Print the effective engine configuration",
		Long:  `config prints the defaults, or FILE merged over the defaults, as YAML. The file is validated.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := framegraph.DefaultConfig()
			if len(args) == 1 {
				loaded, err := framegraph.LoadConfig(args[0])
				if err != nil {
					return err
				}
				cfg = *loaded
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
