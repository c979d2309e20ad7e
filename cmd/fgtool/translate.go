// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
	"github.com/spf13/cobra"
)

// Translate cross-compiles WGSL source to lang ("glsl", "msl" or "hlsl").
// entry selects the GLSL entry point; GLSL output holds one stage, and an
// empty entry picks the first one.
func Translate(source, lang, entry string) (string, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse error: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return "", fmt.Errorf("lowering error: %w", err)
	}
	return translateModule(module, lang, entry)
}

func translateModule(module *ir.Module, lang, entry string) (string, error) {
	switch strings.ToLower(lang) {
	case "glsl":
		opts := glsl.DefaultOptions()
		opts.EntryPoint = entry
		out, _, err := glsl.Compile(module, opts)
		return out, err
	case "msl":
		out, _, err := msl.Compile(module, msl.DefaultOptions())
		return out, err
	case "hlsl":
		out, _, err := hlsl.Compile(module, hlsl.DefaultOptions())
		return out, err
	default:
		return "", fmt.Errorf("unknown language %q (want glsl, msl or hlsl)", lang)
	}
}

func newTranslateCmd(root *rootOptions) *cobra.Command {
	var (
		variant variantFlags
		lang    string
		entry   string
	)
	cmd := &cobra.Command{
		Use:   "translate TEMPLATE",
		Short: "Cross-compile one variant to GLSL, MSL or HLSL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := variant.expand(root.engine(), args[0])
			if err != nil {
				return err
			}
			out, err := Translate(res.Source, lang, entry)
			if err != nil {
				return fmt.Errorf("translate %s to %s: %w", args[0], lang, err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	variant.register(cmd)
	cmd.Flags().StringVar(&lang, "lang", "glsl", "Target language: glsl, msl or hlsl")
	cmd.Flags().StringVar(&entry, "entry", "", "GLSL entry point (default: the first one)")
	return cmd
}
