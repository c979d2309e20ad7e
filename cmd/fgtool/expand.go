// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newExpandCmd(root *rootOptions) *cobra.Command {
	var variant variantFlags
	cmd := &cobra.Command{
		Use:   "expand TEMPLATE",
		Short: "Print the expanded WGSL of one variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := variant.expand(root.engine(), args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), res.Source)
			return err
		},
	}
	variant.register(cmd)
	return cmd
}

func newSlotsCmd(root *rootOptions) *cobra.Command {
	var variant variantFlags
	cmd := &cobra.Command{
		Use:   "slots TEMPLATE",
		Short: "Print the varying locations one variant allocates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := variant.expand(root.engine(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "defines:   %s\n", res.Defines)
			fmt.Fprintf(out, "templates: %s\n\n", strings.Join(res.Templates, ", "))

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LOCATION\tTEMPLATE\tLINE")
			for _, loc := range res.Locations {
				fmt.Fprintf(w, "%d\t%s\t%d\n", loc.Index, loc.Template, loc.Line)
			}
			return w.Flush()
		},
	}
	variant.register(cmd)
	return cmd
}
