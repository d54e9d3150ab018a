package frame

import (
	"fmt"

	"github.com/prismengine/prism/engine/renderer/driver"
)

// surface bundles the swapchain with the per-image views and framebuffers
// built on top of it. The three are created and destroyed as a unit during
// recreation.
type surface struct {
	swapchain    driver.Swapchain
	views        []driver.ImageView
	framebuffers []driver.Framebuffer

	// presented tracks, per image, whether the image has been through a
	// present at least once. A never-presented image is in the undefined
	// layout; a presented one is in the present layout. The recorded
	// barrier picks its source layout from this.
	presented []bool
}

// attachSurface builds the views and framebuffers for an already-created
// swapchain, taking ownership of it.
func attachSurface(gpu driver.GPU, pass driver.RenderPass, sc driver.Swapchain) (*surface, error) {
	s := &surface{swapchain: sc}

	for i, img := range sc.Images() {
		view, err := gpu.NewImageView(img, sc.Format())
		if err != nil {
			s.destroy(gpu)
			return nil, fmt.Errorf("create image view %d: %w", i, err)
		}
		s.views = append(s.views, view)

		fb, err := gpu.NewFramebuffer(pass, view, sc.Extent())
		if err != nil {
			s.destroy(gpu)
			return nil, fmt.Errorf("create framebuffer %d: %w", i, err)
		}
		s.framebuffers = append(s.framebuffers, fb)
	}
	s.presented = make([]bool, len(sc.Images()))
	return s, nil
}

// destroy tears the surface down in dependency order: framebuffers first,
// then views, then the swapchain itself.
func (s *surface) destroy(gpu driver.GPU) {
	for _, fb := range s.framebuffers {
		gpu.DestroyFramebuffer(fb)
	}
	s.framebuffers = nil
	for _, v := range s.views {
		gpu.DestroyImageView(v)
	}
	s.views = nil
	if s.swapchain != nil {
		s.swapchain.Destroy()
		s.swapchain = nil
	}
}

// sourceLayout returns the layout image idx is currently in and marks it as
// presented for the next round trip.
func (s *surface) sourceLayout(idx uint32) driver.Layout {
	if s.presented[idx] {
		return driver.LayoutPresent
	}
	s.presented[idx] = true
	return driver.LayoutUndefined
}
