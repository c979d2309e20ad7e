// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Compiler turns expanded WGSL into a shader module on a device.
type Compiler interface {
	// Name returns the registry name of the compiler.
	Name() string

	// CreateModule compiles source and creates the module.
	CreateModule(device hal.Device, label, source string) (hal.ShaderModule, error)
}

// SPIRVCompiler compiles WGSL to SPIR-V with naga and hands the binary to
// the device. This is the default compiler.
type SPIRVCompiler struct {
	// Options overrides naga.DefaultOptions when non-nil.
	Options *naga.CompileOptions
}

// Name returns "spirv".
func (SPIRVCompiler) Name() string { return "spirv" }

// CreateModule compiles source to SPIR-V and creates a module from it.
func (c SPIRVCompiler) CreateModule(device hal.Device, label, source string) (hal.ShaderModule, error) {
	opts := naga.DefaultOptions()
	if c.Options != nil {
		opts = *c.Options
	}
	code, err := CompileSPIRV(source, opts)
	if err != nil {
		return nil, err
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: code},
	})
}

// WGSLCompiler validates WGSL with naga and passes the text through to
// backends that consume WGSL directly.
type WGSLCompiler struct{}

// Name returns "wgsl".
func (WGSLCompiler) Name() string { return "wgsl" }

// CreateModule validates source and creates a WGSL module.
func (WGSLCompiler) CreateModule(device hal.Device, label, source string) (hal.ShaderModule, error) {
	if err := ValidateWGSL(source); err != nil {
		return nil, err
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
}

// CompileSPIRV compiles WGSL source to SPIR-V words.
func CompileSPIRV(source string, opts naga.CompileOptions) ([]uint32, error) {
	spirvBytes, err := naga.CompileWithOptions(source, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// ValidateWGSL parses, lowers and validates source without generating code.
// Every validation error is reported.
func ValidateWGSL(source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return fmt.Errorf("lowering error: %w", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, len(verrs))
	for i := range verrs {
		errs[i] = verrs[i]
	}
	return fmt.Errorf("validation failed: %w", errors.Join(errs...))
}

var compilers = gpucontext.NewRegistry[Compiler](gpucontext.WithPriority("spirv", "wgsl"))

func init() {
	compilers.Register("spirv", func() Compiler { return SPIRVCompiler{} })
	compilers.Register("wgsl", func() Compiler { return WGSLCompiler{} })
}

// RegisterCompiler makes a compiler available under name. Registering an
// existing name replaces it.
func RegisterCompiler(name string, factory func() Compiler) {
	compilers.Register(name, factory)
}

// LookupCompiler returns the named compiler. An empty name selects the
// highest priority registered compiler.
func LookupCompiler(name string) (Compiler, error) {
	if name == "" {
		if c := compilers.Best(); c != nil {
			return c, nil
		}
		return nil, fmt.Errorf("%w: none registered", ErrUnknownCompiler)
	}
	if !compilers.Has(name) {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownCompiler, name, compilers.Available())
	}
	return compilers.Get(name), nil
}

// Compilers returns the names of the registered compilers.
func Compilers() []string { return compilers.Available() }
