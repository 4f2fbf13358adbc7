// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines rendering related features that renderers must implement.
package gfx

// Releasable defines any item holding driver resources that can be freed.
// Releasing an already released item does nothing.
type Releasable interface {

	// Release releases resources held by the implementing structure.
	Release()
}

// ReleaseAll releases items in the given order, skipping nil entries.
func ReleaseAll(items ...Releasable) {
	for _, item := range items {
		if item != nil {
			item.Release()
		}
	}
}
