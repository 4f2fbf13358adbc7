// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"
)

// Errors returned by the renderer core.
var (
	ErrNoDeviceFound            = errors.New("no physical device found")
	ErrDeviceCreationFailed     = errors.New("logical device creation failed")
	ErrInvalidQueuePriorities   = errors.New("queue priorities do not cover every queue family")
	ErrFenceTimeout             = errors.New("fence wait timed out")
	ErrAttachmentCountMismatch  = errors.New("attachment count does not match render pass")
	ErrSurfaceUnsupportedFormat = errors.New("surface reports no usable format")
	ErrSwapchainOutOfDate       = errors.New("swapchain is out of date")
	ErrInvalidExtent            = errors.New("swapchain extent must not be zero")
	ErrInvalidState             = errors.New("operation not allowed in current state")
)

// Kind classifies a failed driver result.
type Kind int

// Recognised result kinds, KindUnknown covers everything else.
const (
	KindUnknown Kind = iota
	KindDeviceLost
	KindOutOfHostMemory
	KindOutOfDeviceMemory
	KindInitializationFailed
	KindLayerNotPresent
	KindExtensionNotPresent
	KindFeatureNotPresent
	KindIncompatibleDriver
	KindSurfaceLost
	KindOutOfDate
	KindTooManyObjects
	KindNotReady
	KindTimeout
)

var kindNames = [...]string{
	KindUnknown:              "VK_UNKNOWN",
	KindDeviceLost:           "VK_ERROR_DEVICE_LOST",
	KindOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	KindOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	KindInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	KindLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	KindExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	KindFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	KindIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	KindSurfaceLost:          "VK_ERROR_SURFACE_LOST_KHR",
	KindOutOfDate:            "VK_ERROR_OUT_OF_DATE_KHR",
	KindTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	KindNotReady:             "VK_NOT_READY",
	KindTimeout:              "VK_TIMEOUT",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

var resultKinds = map[vk.Result]Kind{
	vk.ErrorDeviceLost:           KindDeviceLost,
	vk.ErrorOutOfHostMemory:      KindOutOfHostMemory,
	vk.ErrorOutOfDeviceMemory:    KindOutOfDeviceMemory,
	vk.ErrorInitializationFailed: KindInitializationFailed,
	vk.ErrorLayerNotPresent:      KindLayerNotPresent,
	vk.ErrorExtensionNotPresent:  KindExtensionNotPresent,
	vk.ErrorFeatureNotPresent:    KindFeatureNotPresent,
	vk.ErrorIncompatibleDriver:   KindIncompatibleDriver,
	vk.ErrorSurfaceLost:          KindSurfaceLost,
	vk.ErrorOutOfDate:            KindOutOfDate,
	vk.ErrorTooManyObjects:       KindTooManyObjects,
	vk.NotReady:                  KindNotReady,
	vk.Timeout:                   KindTimeout,
}

// VulkanError is a driver call that returned a failure code.
type VulkanError struct {
	Call string
	Code vk.Result
	Kind Kind
}

// Name returns the name of the native result code.
func (e *VulkanError) Name() string {
	if e.Kind == KindUnknown {
		return fmt.Sprintf("%s(%d)", KindUnknown, e.Code)
	}
	return e.Kind.String()
}

func (e *VulkanError) Error() string {
	return fmt.Sprintf("%s(): %s", e.Call, e.Name())
}

// check translates a driver result. Success and suboptimal results are not errors.
func check(call string, ret vk.Result) error {
	switch ret {
	case vk.Success, vk.Suboptimal:
		return nil
	}
	kind, ok := resultKinds[ret]
	if !ok {
		kind = KindUnknown
	}
	return &VulkanError{
		Call: call,
		Code: ret,
		Kind: kind,
	}
}

// sentinelError classifies a failure under a sentinel. The failure stays
// the unwrapped cause, so a VulkanError inside it is still found by As, and
// Is matches the sentinel for both the standard and the cockroachdb errors.
type sentinelError struct {
	cause    error
	sentinel error
}

func withSentinel(err, sentinel error) error {
	if err == nil {
		return nil
	}
	return &sentinelError{cause: err, sentinel: sentinel}
}

func (e *sentinelError) Error() string {
	return e.cause.Error()
}

func (e *sentinelError) Unwrap() error {
	return e.cause
}

// Is reports whether target is the sentinel the failure is classified under.
func (e *sentinelError) Is(target error) bool {
	return target == e.sentinel
}

// KindOf reports the kind of the first VulkanError found in the chain of err.
func KindOf(err error) (Kind, bool) {
	var verr *VulkanError
	if errors.As(err, &verr) {
		return verr.Kind, true
	}
	return KindUnknown, false
}
