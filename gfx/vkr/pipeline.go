// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"
)

// NewPipeline creates a graphics pipeline for renderPass out of shaders.
// Vertices are generated by the vertex shader, so there is no vertex input.
// Viewport and scissor are dynamic and must be set while recording.
func NewPipeline(device *Device, renderPass *RenderPass, shaders []*Shader) (*Pipeline, error) {
	if len(shaders) == 0 {
		return nil, errors.New("pipeline needs at least one shader")
	}

	p := &Pipeline{
		driver: device.Driver(),
		device: device.NativeLogicalHandle(),
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	layout, ret := p.driver.CreatePipelineLayout(p.device, &plci)
	if err := check("vk.CreatePipelineLayout", ret); err != nil {
		return nil, err
	}
	p.layout = layout

	stages := make([]vk.PipelineShaderStageCreateInfo, len(shaders))
	for idx, shader := range shaders {
		stages[idx] = shader.stageInfo()
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: 0xF,
				BlendEnable:    vk.False,
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateScissor,
				vk.DynamicStateViewport,
			},
		},
		Layout:     layout,
		RenderPass: renderPass.Handle(),
	}}

	pipelines, ret := p.driver.CreateGraphicsPipelines(p.device, gpci)
	if err := check("vk.CreateGraphicsPipelines", ret); err != nil {
		p.Release()
		return nil, err
	}
	p.pipeline = pipelines[0]
	return p, nil
}

// Pipeline is a graphics pipeline together with its layout
type Pipeline struct {
	driver   Driver
	device   vk.Device
	layout   vk.PipelineLayout
	pipeline vk.Pipeline
}

// Handle returns the native pipeline
func (p *Pipeline) Handle() vk.Pipeline {
	return p.pipeline
}

// Release destroys the pipeline and its layout
func (p *Pipeline) Release() {
	if p == nil {
		return
	}
	if p.pipeline != nil {
		p.driver.DestroyPipeline(p.device, p.pipeline)
		p.pipeline = nil
	}
	if p.layout != nil {
		p.driver.DestroyPipelineLayout(p.device, p.layout)
		p.layout = nil
	}
}
