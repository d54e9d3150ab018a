// Package vulkan implements driver.GPU on top of goki/vulkan. One GPU owns
// the instance, the surface, the logical device with its graphics and
// present queues, and the command pool every command buffer comes from.
package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/prismengine/prism/engine/renderer/driver"
)

// WindowSystem is what the backend needs from the windowing layer.
type WindowSystem interface {
	RequiredExtensions() []string
	CreateSurface(vk.Instance) (vk.Surface, error)
	DrawableExtent() driver.Extent2D
}

// Options configures device creation.
type Options struct {
	AppName string
	// Validation enables the Khronos validation layer and the debug report
	// callback.
	Validation bool
	// VSync forces FIFO presentation; otherwise mailbox is preferred when
	// the device offers it.
	VSync bool
}

type GPU struct {
	log  *log.Logger
	opts Options

	instance  vk.Instance
	debugger  vk.DebugReportCallback
	surface   vk.Surface
	physical  vk.PhysicalDevice
	device    vk.Device
	pool      vk.CommandPool
	caps      driver.DeviceCaps
	memory    vk.PhysicalDeviceMemoryProperties
	graphicsQ vk.Queue
	presentQ  vk.Queue

	graphicsFamily uint32
	presentFamily  uint32
}

// gpuLog is read by the debug report callback. The callback is invoked from
// C so it cannot carry a closure; the process has a single instance anyway.
var gpuLog *log.Logger

// New initializes the loader, creates the instance and surface, selects a
// device and builds the command pool. win must outlive the returned GPU.
func New(win WindowSystem, logger *log.Logger, opts Options) (*GPU, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("vulkan loader not available")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("initialize vulkan: %w", err)
	}

	g := &GPU{log: logger, opts: opts}
	gpuLog = logger

	if err := g.createInstance(win); err != nil {
		return nil, err
	}
	if opts.Validation {
		if err := g.createDebugger(); err != nil {
			g.Close()
			return nil, err
		}
	}

	surface, err := win.CreateSurface(g.instance)
	if err != nil {
		g.Close()
		return nil, err
	}
	g.surface = surface

	if err := g.createDevice(); err != nil {
		g.Close()
		return nil, err
	}

	g.log.Info("vulkan device ready",
		"maxViewports", g.caps.MaxViewports,
		"wideLines", g.caps.WideLines,
		"depthClamp", g.caps.DepthClamp)
	return g, nil
}

func (g *GPU) Caps() driver.DeviceCaps { return g.caps }

func (g *GPU) createInstance(win WindowSystem) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(g.opts.AppName),
		PEngineName:        safeString("Prism"),
	}

	extensions := []string{"VK_KHR_surface"}
	extensions = append(extensions, win.RequiredExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}
	if g.opts.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	var layers []string
	if g.opts.Validation {
		const khronos = "VK_LAYER_KHRONOS_validation"
		if !instanceLayerAvailable(khronos) {
			return fmt.Errorf("validation requested but %s is not installed", khronos)
		}
		layers = []string{khronos}
		if runtime.GOOS == "darwin" {
			createInfo.Flags |= 1
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	if res := vk.CreateInstance(&createInfo, nil, &g.instance); res != vk.Success {
		return resultErr(res, "vkCreateInstance")
	}
	if err := vk.InitInstance(g.instance); err != nil {
		return fmt.Errorf("initialize instance proc table: %w", err)
	}
	return nil
}

func instanceLayerAvailable(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if vk.ToString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (g *GPU) createDebugger() error {
	createInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
		PfnCallback: dbgCallbackFunc,
	}
	var dbg vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(g.instance, &createInfo, nil, &dbg); res != vk.Success {
		return resultErr(res, "vkCreateDebugReportCallbackEXT")
	}
	g.debugger = dbg
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	if gpuLog == nil {
		return vk.False
	}
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		gpuLog.Error("validation", "layer", pLayerPrefix, "code", messageCode, "msg", pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0,
		flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		gpuLog.Warn("validation", "layer", pLayerPrefix, "code", messageCode, "msg", pMessage)
	default:
		gpuLog.Debug("validation", "layer", pLayerPrefix, "code", messageCode, "msg", pMessage)
	}
	return vk.False
}

// Close destroys everything the GPU owns, in the opposite order of creation.
// Callers must have torn down all objects created through it first.
func (g *GPU) Close() {
	if g.device != nil {
		vk.DeviceWaitIdle(g.device)
		if g.pool != vk.NullCommandPool {
			vk.DestroyCommandPool(g.device, g.pool, nil)
			g.pool = vk.NullCommandPool
		}
		vk.DestroyDevice(g.device, nil)
		g.device = nil
	}
	if g.surface != vk.NullSurface {
		vk.DestroySurface(g.instance, g.surface, nil)
		g.surface = vk.NullSurface
	}
	if g.debugger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(g.instance, g.debugger, nil)
		g.debugger = vk.NullDebugReportCallback
	}
	if g.instance != nil {
		vk.DestroyInstance(g.instance, nil)
		g.instance = nil
	}
	gpuLog = nil
}
