package tensor

import "testing"

func TestNewRawZeroed(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32, CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	if raw.ByteSize() != 2*3*4 {
		t.Errorf("ByteSize = %d, want %d", raw.ByteSize(), 24)
	}
	for i, v := range raw.AsFloat32() {
		if v != 0 {
			t.Errorf("element %d = %v, want 0", i, v)
		}
	}
}

func TestNewRawInvalidShape(t *testing.T) {
	if _, err := NewRaw(Shape{2, -1}, Float32, CPU); err == nil {
		t.Error("expected error for negative dimension")
	}
	if _, err := NewRaw(Shape{0}, Float32, CPU); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestRawTensorTypedViews(t *testing.T) {
	raw := MustNewRaw(Shape{4}, Float32, CPU)
	view := raw.AsFloat32()
	view[2] = 7.5

	if got := raw.AsFloat32()[2]; got != 7.5 {
		t.Errorf("write through view not visible: got %v", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("AsInt64 on a float32 tensor should panic")
		}
	}()
	raw.AsInt64()
}

func TestRawTensorClone(t *testing.T) {
	raw := MustNewRaw(Shape{3}, Float32, CPU)
	raw.AsFloat32()[0] = 1

	clone := raw.Clone()
	clone.AsFloat32()[0] = 2

	if raw.AsFloat32()[0] != 1 {
		t.Error("mutating the clone changed the original")
	}
	if !clone.Shape().Equal(raw.Shape()) {
		t.Errorf("clone shape %v != original %v", clone.Shape(), raw.Shape())
	}
}

func TestRawTensorWithShape(t *testing.T) {
	raw := MustNewRaw(Shape{2, 6}, Float32, CPU)
	view := raw.WithShape(Shape{3, 4})

	view.AsFloat32()[0] = 9
	if raw.AsFloat32()[0] != 9 {
		t.Error("WithShape should share the underlying buffer")
	}
	if !view.Shape().Equal(Shape{3, 4}) {
		t.Errorf("view shape = %v, want [3 4]", view.Shape())
	}

	defer func() {
		if recover() == nil {
			t.Error("WithShape with mismatched element count should panic")
		}
	}()
	raw.WithShape(Shape{5})
}

func TestDataTypeSize(t *testing.T) {
	if Float32.Size() != 4 {
		t.Errorf("Float32.Size() = %d, want 4", Float32.Size())
	}
	if Int64.Size() != 8 {
		t.Errorf("Int64.Size() = %d, want 8", Int64.Size())
	}
	if Float32.String() != "float32" || Int64.String() != "int64" {
		t.Errorf("unexpected dtype names: %s, %s", Float32, Int64)
	}
}
