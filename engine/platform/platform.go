// Package platform owns the GLFW window and the surface the renderer
// presents into.
package platform

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/prismengine/prism/engine/renderer/driver"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window

	log     *log.Logger
	resized bool
}

func New(logger *log.Logger) *Platform {
	return &Platform{log: logger}
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize glfw: %w", err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.log.Info("window ready", "title", applicationName, "size", fmt.Sprintf("%dx%d", width, height))
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// DrawableExtent is the framebuffer size in pixels; zero while minimized.
func (p *Platform) DrawableExtent() driver.Extent2D {
	w, h := p.Window.GetFramebufferSize()
	return driver.Extent2D{Width: uint32(w), Height: uint32(h)}
}

// ConsumeResize reports whether the framebuffer changed size since the last
// call and clears the flag.
func (p *Platform) ConsumeResize() bool {
	r := p.resized
	p.resized = false
	return r
}

func (p *Platform) PollEvents() { glfw.PollEvents() }

// WaitEvents blocks until a windowing event arrives. Used while minimized.
func (p *Platform) WaitEvents() { glfw.WaitEvents() }

func (p *Platform) ShouldClose() bool { return p.Window.ShouldClose() }

// RequiredExtensions lists the instance extensions the windowing system
// needs for surface creation.
func (p *Platform) RequiredExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateSurface creates the presentation surface on the given instance.
func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("create window surface: %w", err)
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resized = true
}
