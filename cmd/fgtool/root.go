// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/passes"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
)

// defaultLayout is the vertex layout used when --layout is not given.
const defaultLayout = "position:float32x3"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	dir      string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "fgtool",
		Short:         "Inspect and compile framegraph shader templates",
		Long:          `fgtool expands WGSL templates, reports varying slots, validates templates and compiles their variants.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
			if err != nil {
				return err
			}
			framegraph.SetLogger(logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dir, "dir", "", "Directory with shader templates (overrides the built-in ones)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	cmd.AddCommand(
		newExpandCmd(opts),
		newSlotsCmd(opts),
		newCheckCmd(opts),
		newCompileCmd(opts),
		newTranslateCmd(opts),
		newConfigCmd(),
	)
	return cmd
}

// newLogger writes text logs to w. The "error" key is shortened to "err"
// to match the library's own attributes.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	})), nil
}

// source layers --dir over the built-in templates.
func (o *rootOptions) source() shader.Source {
	if o.dir == "" {
		return passes.Source()
	}
	return shader.Layered{shader.FSSource{FS: os.DirFS(o.dir)}, passes.Source()}
}

func (o *rootOptions) engine() *shader.Engine {
	return shader.NewEngine(o.source())
}

// templates lists the root templates of --dir and the built-in set.
func (o *rootOptions) templates() ([]string, error) {
	names, err := passes.Templates(passes.FS())
	if err != nil {
		return nil, err
	}
	if o.dir != "" {
		local, err := passes.Templates(os.DirFS(o.dir))
		if err != nil {
			return nil, err
		}
		names = append(names, local...)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// variantFlags select one shader variant.
type variantFlags struct {
	defines  []string
	layout   string
	bindings string
}

func (v *variantFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&v.defines, "define", "D", nil, "Define FLAG or NAME=VALUE (repeatable)")
	cmd.Flags().StringVar(&v.layout, "layout", defaultLayout, "Vertex layout as name:format pairs, comma separated")
	cmd.Flags().StringVar(&v.bindings, "bindings", "", "File with WGSL substituted for {{ bindings }}")
}

// expand renders template with the selected variant. The layout's HAS_*
// defines are merged in the same way the pipeline cache does.
func (v *variantFlags) expand(eng *shader.Engine, template string, extra ...string) (*shader.Result, error) {
	layout, err := pipeline.ParseVertexLayout(v.layout)
	if err != nil {
		return nil, err
	}
	var bindings string
	if v.bindings != "" {
		data, err := os.ReadFile(v.bindings)
		if err != nil {
			return nil, fmt.Errorf("failed to read bindings: %w", err)
		}
		bindings = string(data)
	}
	defs := shader.Merge(layout.Defines(), shader.ParseDefines(v.defines...), shader.ParseDefines(extra...))
	return eng.Expand(template, defs, shader.Vars{
		shader.VarVertexInput: layout.WGSL(),
		shader.VarBindings:    bindings,
	})
}
