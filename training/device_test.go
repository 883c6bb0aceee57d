package training

import (
	"testing"
)

// fakeTensor records the device it was moved to.
type fakeTensor struct {
	device string
}

func (f *fakeTensor) ToDevice(d Device) (any, error) {
	return &fakeTensor{device: d.Name()}, nil
}

func TestToDeviceNestedContainers(t *testing.T) {
	batch := map[string]any{
		"inputs": []any{&fakeTensor{}, &fakeTensor{}},
		"meta": map[string]any{
			"target": &fakeTensor{},
			"id":     "sample-7",
		},
		"length": 42,
	}

	moved, err := ToDevice(batch, CPU{})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	m := moved.(map[string]any)
	inputs := m["inputs"].([]any)
	for i, item := range inputs {
		if item.(*fakeTensor).device != "cpu" {
			t.Errorf("inputs[%d] not transferred", i)
		}
	}
	meta := m["meta"].(map[string]any)
	if meta["target"].(*fakeTensor).device != "cpu" {
		t.Error("nested map leaf not transferred")
	}

	// Opaque leaves pass through unchanged.
	if meta["id"] != "sample-7" {
		t.Errorf("opaque string leaf changed: %v", meta["id"])
	}
	if m["length"] != 42 {
		t.Errorf("opaque int leaf changed: %v", m["length"])
	}
}

func TestToDeviceOpaqueRoot(t *testing.T) {
	moved, err := ToDevice(3.14, CPU{})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if moved != 3.14 {
		t.Errorf("opaque root changed: %v", moved)
	}
}

type failingTensor struct{}

func (failingTensor) ToDevice(Device) (any, error) {
	return nil, ErrResourceExhausted
}

func TestToDevicePropagatesLeafError(t *testing.T) {
	_, err := ToDevice(map[string]any{"x": failingTensor{}}, CPU{})
	if err == nil {
		t.Fatal("expected transfer error to propagate")
	}
}
