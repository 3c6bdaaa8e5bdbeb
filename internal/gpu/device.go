package gpu

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device bundles the HAL objects the rest of the process renders with.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
}

// OpenDevice brings up the Vulkan backend and opens the most capable
// adapter: discrete first, then integrated, then whatever enumerated
// first.
func OpenDevice() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not registered")
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no adapters found")
	}

	selected := pickAdapter(adapters)
	log.Debugf("gpu: using adapter %s", selected.Info.Name)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open adapter %q: %w", selected.Info.Name, err)
	}

	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}, nil
}

func pickAdapter(adapters []hal.ExposedAdapter) hal.ExposedAdapter {
	for _, a := range adapters {
		if a.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			return a
		}
	}
	for _, a := range adapters {
		if a.Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return a
		}
	}
	return adapters[0]
}

// HAL returns the raw device handle.
func (d *Device) HAL() hal.Device { return d.device }

// Queue returns the submission queue.
func (d *Device) Queue() hal.Queue { return d.queue }

// Name returns the adapter name, for status output.
func (d *Device) Name() string { return d.name }

// Close releases the device and the instance behind it.
func (d *Device) Close() {
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
