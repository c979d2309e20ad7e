// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var variant variantFlags
	cmd := &cobra.Command{
		Use:   "check [TEMPLATE...]",
		Short: "Validate templates and their default variant",
		Long: `check loads every named template (all root templates when none are named),
verifies that its directives are balanced and its include graph resolves
without cycles, then expands the variant selected by the flags and runs the
result through the WGSL parser and validator.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				var err error
				if names, err = root.templates(); err != nil {
					return err
				}
			}

			eng := root.engine()
			out := cmd.OutOrStdout()
			failed := 0
			for _, name := range names {
				if err := checkTemplate(eng, &variant, name); err != nil {
					failed++
					fmt.Fprintf(out, "FAIL  %s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(out, "ok    %s\n", name)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d templates failed", failed, len(names))
			}
			return nil
		},
	}
	variant.register(cmd)
	return cmd
}

func checkTemplate(eng *shader.Engine, variant *variantFlags, name string) error {
	if err := eng.Validate(name); err != nil {
		return err
	}
	res, err := variant.expand(eng, name)
	if err != nil {
		return err
	}
	return pipeline.ValidateWGSL(res.Source)
}
