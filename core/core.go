// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core holds the renderer independent parts of the harness:
// configuration, frame timing and shader discovery.
package core

// Renderer describes the rendering machinery.
// It's created ready for use and must be released once done.
type Renderer interface {
	// Draw renders and presents one frame
	Draw() error

	// Resize adapts the render targets to the new window size,
	// a zero dimension suspends drawing until the next resize
	Resize(width, height uint32) error

	// Release destroys internal members
	Release()
}

// ShaderType represents the type of shader thats loaded
type ShaderType int

// Identifies shader objects with their types
const (
	VertexShaderType ShaderType = iota
	FragmentShaderType
	UnknownShaderType
)

func (s ShaderType) String() string {
	switch s {
	case VertexShaderType:
		return "vertex"
	case FragmentShaderType:
		return "fragment"
	}
	return "unknown"
}
