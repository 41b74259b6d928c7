package images

// Box is a lightweight bounding box in corner form. Coordinates are
// normalized to [0, 1] image space; X2, Y2 are exclusive.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float32 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() float32 { return b.Y2 - b.Y1 }

// Area returns the area of the box. Degenerate boxes have zero area.
func (b Box) Area() float32 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// CalculateIoU computes the Intersection over Union of two boxes.
//
// IoU measures the extent of overlap between two bounding boxes:
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the boxes are identical, 0.0 means they do not
// overlap at all. The union follows the inclusion-exclusion principle:
// Union(A, B) = Area(A) + Area(B) - Intersection(A, B).
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
func CalculateIoU(r, o Box) float32 {
	// Intersection corners: the overlap cannot start before both boxes have
	// begun and must end as soon as the first box ends.
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return interArea / unionArea
}
