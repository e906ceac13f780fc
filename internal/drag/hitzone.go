package drag

type Mode string

const (
	ModeMove        Mode = "move"
	ModeResizeStart Mode = "resize-start"
	ModeResizeEnd   Mode = "resize-end"
)

const (
	CursorGrab     = "grab"
	CursorNSResize = "ns-resize"
	CursorEWResize = "ew-resize"
)

type Point struct {
	X, Y float64
}

// Rect is an element's bounding box with its origin at the top-left corner.
type Rect struct {
	X, Y, Width, Height float64
}

type HitZone struct {
	Mode   Mode
	Cursor string
}

// DetectHitZone maps a pointer inside bounds to the interaction it starts.
// Vertical layouts resize from the top and bottom edges, horizontal layouts
// from the left and right edges.
func DetectHitZone(p Point, bounds Rect, edgeZoneSize float64, dir Direction) HitZone {
	lead, trail, cursor := p.Y-bounds.Y, bounds.Y+bounds.Height-p.Y, CursorNSResize
	if dir == Horizontal {
		lead, trail, cursor = p.X-bounds.X, bounds.X+bounds.Width-p.X, CursorEWResize
	}
	switch {
	case lead <= edgeZoneSize:
		return HitZone{Mode: ModeResizeStart, Cursor: cursor}
	case trail <= edgeZoneSize:
		return HitZone{Mode: ModeResizeEnd, Cursor: cursor}
	default:
		return HitZone{Mode: ModeMove, Cursor: CursorGrab}
	}
}
