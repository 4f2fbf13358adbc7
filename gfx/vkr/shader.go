// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
	"github.com/devblok/lava/core"
	vk "github.com/devblok/vulkan"
)

// NewShader creates a shader module from compiled SPIR-V
func NewShader(device *Device, source core.ShaderSource) (*Shader, error) {
	var stage vk.ShaderStageFlagBits
	switch source.Type {
	case core.VertexShaderType:
		stage = vk.ShaderStageVertexBit
	case core.FragmentShaderType:
		stage = vk.ShaderStageFragmentBit
	default:
		return nil, errors.Newf("shader %s: unsupported type %s", source.Name, source.Type)
	}

	code := core.SliceUint32(source.Code)
	if len(code) == 0 {
		return nil, errors.Newf("shader %s: no code", source.Name)
	}

	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(source.Code)),
		PCode:    code,
	}

	module, ret := device.Driver().CreateShaderModule(device.NativeLogicalHandle(), &smci)
	if err := check("vk.CreateShaderModule", ret); err != nil {
		return nil, errors.Wrapf(err, "%s shader %s", source.Type, source.Name)
	}

	return &Shader{
		driver: device.Driver(),
		device: device.NativeLogicalHandle(),
		module: module,
		name:   source.Name,
		stage:  stage,
		kind:   source.Type,
	}, nil
}

// Shader is a Vulkan shader module
type Shader struct {
	driver Driver
	device vk.Device
	module vk.ShaderModule
	name   string
	stage  vk.ShaderStageFlagBits
	kind   core.ShaderType
}

// Name of the shader
func (s *Shader) Name() string {
	return s.name
}

// Type of the shader
func (s *Shader) Type() core.ShaderType {
	return s.kind
}

// Handle returns the native shader module
func (s *Shader) Handle() vk.ShaderModule {
	return s.module
}

func (s *Shader) stageInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  s.stage,
		Module: s.module,
		PName:  "main\x00",
	}
}

// Release destroys the shader module
func (s *Shader) Release() {
	if s == nil || s.module == nil {
		return
	}
	s.driver.DestroyShaderModule(s.device, s.module)
	s.module = nil
}
