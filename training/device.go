package training

// Device identifies a compute device. The trainer treats it as opaque; it
// only hands it to transfer capabilities and, after a resource-exhaustion
// skip, asks it to release cached memory if it can.
type Device interface {
	Name() string
}

// CPU is the host device. It has no cache to release and transfers are
// no-ops.
type CPU struct{}

func (CPU) Name() string { return "cpu" }

// CacheReleaser is implemented by devices that can drop cached allocations
// after a resource-exhaustion skip.
type CacheReleaser interface {
	EmptyCache()
}

// Transferable is implemented by batch leaves that know how to move
// themselves to a device.
type Transferable interface {
	ToDevice(device Device) (any, error)
}

// ToDevice recursively moves a batch to the device. Maps and slices are
// walked, Transferable leaves delegate to their own transfer, and any
// other leaf passes through unchanged. Maps are mutated in place; slices
// are rebuilt.
func ToDevice(data any, device Device) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, item := range v {
			moved, err := ToDevice(item, device)
			if err != nil {
				return nil, err
			}
			v[key] = moved
		}
		return v, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			moved, err := ToDevice(item, device)
			if err != nil {
				return nil, err
			}
			out[i] = moved
		}
		return out, nil
	case Transferable:
		return v.ToDevice(device)
	default:
		return data, nil
	}
}

// releaseCache drops the device's cached allocations when it supports
// doing so.
func releaseCache(device Device) {
	if r, ok := device.(CacheReleaser); ok {
		r.EmptyCache()
	}
}
