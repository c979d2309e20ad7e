// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/gogpu/naga"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
)

// maxVariantFlags bounds the 2^n combinations compile enumerates.
const maxVariantFlags = 12

// VariantSet is the file format read by compile --variants:
//
//	flags: [HAS_UV, TONEMAP]   # every on/off combination is compiled
//	defines: [EXPOSURE=1.5]    # applied to every variant
//	layout: position:float32x3,uv:float32x2
type VariantSet struct {
	Flags   []string `yaml:"flags"`
	Defines []string `yaml:"defines"`
	Layout  string   `yaml:"layout"`
}

// LoadVariantSet reads a variant file.
func LoadVariantSet(path string) (*VariantSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variants: %w", err)
	}
	var vs VariantSet
	if err := yaml.Unmarshal(data, &vs); err != nil {
		return nil, fmt.Errorf("failed to parse variants %s: %w", path, err)
	}
	return &vs, nil
}

// Combinations returns every subset of Flags, each merged with Defines.
// The empty subset comes first.
func (vs *VariantSet) Combinations() ([]shader.Defines, error) {
	flags := shader.ParseDefines(vs.Flags...)
	if len(flags) > maxVariantFlags {
		return nil, fmt.Errorf("%d flags give too many variants (max %d flags)", len(flags), maxVariantFlags)
	}
	base := shader.ParseDefines(vs.Defines...)
	out := make([]shader.Defines, 0, 1<<len(flags))
	for mask := range 1 << len(flags) {
		var set shader.Defines
		for i, f := range flags {
			if mask&(1<<i) != 0 {
				set = append(set, f)
			}
		}
		out = append(out, shader.Merge(base, set))
	}
	return out, nil
}

type variantResult struct {
	defines shader.Defines
	words   int
	err     error
}

func newCompileCmd(root *rootOptions) *cobra.Command {
	var (
		variantsFile string
		flags        []string
		layout       string
		jobs         int
	)
	cmd := &cobra.Command{
		Use:   "compile TEMPLATE",
		Short: "Compile every variant of a template to SPIR-V",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs := &VariantSet{}
			if variantsFile != "" {
				var err error
				if vs, err = LoadVariantSet(variantsFile); err != nil {
					return err
				}
			}
			vs.Flags = append(vs.Flags, flags...)
			if cmd.Flags().Changed("layout") || vs.Layout == "" {
				vs.Layout = layout
			}

			results, err := compileVariants(cmd, root.engine(), args[0], vs, jobs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var failed int
			for _, r := range results {
				name := r.defines.String()
				if name == "" {
					name = "(none)"
				}
				if r.err != nil {
					failed++
					fmt.Fprintf(out, "FAIL  %s: %v\n", name, r.err)
					continue
				}
				fmt.Fprintf(out, "ok    %s (%d words)\n", name, r.words)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d variants failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&variantsFile, "variants", "", "YAML file with flags, defines and layout")
	cmd.Flags().StringArrayVarP(&flags, "flag", "F", nil, "Additional flag to combine (repeatable)")
	cmd.Flags().StringVar(&layout, "layout", defaultLayout, "Vertex layout as name:format pairs, comma separated")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "Variants compiled in parallel")
	return cmd
}

// compileVariants compiles every combination of vs in parallel. Expansion
// and compile errors are reported per variant.
func compileVariants(cmd *cobra.Command, eng *shader.Engine, template string, vs *VariantSet, jobs int) ([]variantResult, error) {
	layout, err := pipeline.ParseVertexLayout(vs.Layout)
	if err != nil {
		return nil, err
	}
	combos, err := vs.Combinations()
	if err != nil {
		return nil, err
	}
	vars := shader.Vars{
		shader.VarVertexInput: layout.WGSL(),
		shader.VarBindings:    "",
	}

	results := make([]variantResult, len(combos))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(jobs, 1))
	for i, defs := range combos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			defs = shader.Merge(layout.Defines(), defs)
			res, err := eng.Expand(template, defs, vars)
			if err != nil {
				results[i] = variantResult{defines: defs, err: err}
				return nil
			}
			words, err := pipeline.CompileSPIRV(res.Source, naga.DefaultOptions())
			results[i] = variantResult{defines: defs, words: len(words), err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
