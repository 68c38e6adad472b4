package embed

import "image"

// Place returns the top-left corner of a tile of side tileSize on a
// background of the given bounds. Offsets that would go negative clamp to 0.
func Place(bounds image.Rectangle, tileSize int, anchor Anchor, margin int) image.Point {
	w, h := bounds.Dx(), bounds.Dy()
	right := saturatingSub(w, tileSize+margin)
	bottom := saturatingSub(h, tileSize+margin)

	var p image.Point
	switch anchor {
	case AnchorTopLeft:
		p = image.Pt(margin, margin)
	case AnchorTopRight:
		p = image.Pt(right, margin)
	case AnchorBottomLeft:
		p = image.Pt(margin, bottom)
	case AnchorCenter:
		p = image.Pt(saturatingSub(w, tileSize)/2, saturatingSub(h, tileSize)/2)
	default:
		p = image.Pt(right, bottom)
	}
	return p.Add(bounds.Min)
}

func saturatingSub(a, b int) int {
	if a < b {
		return 0
	}
	return a - b
}
