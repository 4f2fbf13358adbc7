// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"path"
	"sort"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/gobuffalo/packd"
)

const shaderSuffix = ".spv"

// ShaderBox is a collection of files shaders are loaded from,
// satisfied by packr boxes and packd memory boxes
type ShaderBox interface {
	Find(name string) ([]byte, error)
	Walk(packd.WalkFunc) error
}

// ShaderSource is a compiled SPIR-V shader
type ShaderSource struct {
	Name string
	Type ShaderType
	Code []byte
}

// LoadShaders loads every compiled shader in box. It is important that the
// file name does not contain more than two dots, the first part is the name
// of the shader, second is type, and the .spv extension ensures that the
// shader is compiled. Shaders are returned ordered by path.
func LoadShaders(box ShaderBox) ([]ShaderSource, error) {
	var names []string
	if err := box.Walk(func(p string, _ packd.File) error {
		if strings.HasSuffix(p, shaderSuffix) {
			names = append(names, p)
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "walking shader box")
	}
	sort.Strings(names)

	var shaders []ShaderSource
	for _, p := range names {
		name, shaderType := parseShaderName(path.Base(p))
		if shaderType == UnknownShaderType {
			continue
		}

		code, err := box.Find(p)
		if err != nil {
			return nil, errors.Wrapf(err, "reading shader %s", p)
		}
		if len(code) == 0 || len(code)%4 != 0 {
			return nil, errors.Newf("shader %s is %d bytes, not SPIR-V", p, len(code))
		}

		shaders = append(shaders, ShaderSource{
			Name: name,
			Type: shaderType,
			Code: code,
		})
	}
	return shaders, nil
}

func parseShaderName(filename string) (string, ShaderType) {
	nodes := strings.Split(strings.TrimSuffix(filename, shaderSuffix), ".")
	if len(nodes) != 2 {
		return "", UnknownShaderType
	}

	switch nodes[1] {
	case "frag":
		return nodes[0], FragmentShaderType
	case "vert":
		return nodes[0], VertexShaderType
	}
	return "", UnknownShaderType
}

// SliceUint32 reslices bytes into a uint32, that is used
// to sumbit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
