package marker

// The arena has four walls of seven markers each, numbered clockwise.
const (
	ArenaMarkerCount = 28
	MarkersPerWall   = 7
	WallCount        = ArenaMarkerCount / MarkersPerWall
)

// Wall returns the wall index (0..3) an arena marker code belongs to.
func Wall(code int) int {
	return ((code % ArenaMarkerCount) + ArenaMarkerCount) % ArenaMarkerCount / MarkersPerWall
}

// WallCodes returns the marker codes along wall w.
func WallCodes(w int) []int {
	w = ((w % WallCount) + WallCount) % WallCount
	codes := make([]int, MarkersPerWall)
	for i := range codes {
		codes[i] = w*MarkersPerWall + i
	}
	return codes
}

// HomeMarkers are the arena markers that flank a starting zone's corner.
type HomeMarkers struct {
	Left  int // last marker on the wall to the corner's left
	Right int // first marker on the wall to the corner's right
}

// CornerMarkers returns the two markers either side of zone's corner.
func CornerMarkers(zone int) HomeMarkers {
	right := (zone * MarkersPerWall) % ArenaMarkerCount
	left := (right - 1 + ArenaMarkerCount) % ArenaMarkerCount
	return HomeMarkers{Left: left, Right: right}
}

// CornerCodes returns the set of markers a robot sees when looking into its
// own corner: the two flanking markers and their outer neighbours.
func CornerCodes(zone int) map[int]bool {
	h := CornerMarkers(zone)
	codes := make(map[int]bool, 4)
	codes[(h.Left-1+ArenaMarkerCount)%ArenaMarkerCount] = true
	codes[h.Left] = true
	codes[h.Right] = true
	codes[(h.Right+1)%ArenaMarkerCount] = true
	return codes
}

// IsForeignCorner reports whether an arena code belongs to somebody else's
// corner, i.e. it is not one of zone's CornerCodes.
func IsForeignCorner(zone, code int) bool {
	return !CornerCodes(zone)[code]
}
