package media

// FrameRequest names one keyframe to pull from a video.
//
// OffsetMs follows the submission convention:
//   - zero or positive: absolute milliseconds from the start.
//   - negative with magnitude below 1: fraction of total duration measured
//     from the end (-0.25 is 25% before the end).
//   - negative at or beyond -1: absolute milliseconds measured back from the
//     end.
type FrameRequest struct {
	OffsetMs float64
	Label    string
}

// ResolveOffsetMs maps a requested offset onto a concrete timestamp within
// [0, durationMs]. Out-of-range requests clamp to the nearest boundary so a
// slightly-too-late offset still yields the final frame rather than nothing.
func ResolveOffsetMs(offsetMs, durationMs float64) float64 {
	if durationMs < 0 {
		durationMs = 0
	}
	var resolved float64
	switch {
	case offsetMs >= 0:
		resolved = offsetMs
	case offsetMs > -1:
		resolved = durationMs * (1 + offsetMs)
	default:
		resolved = durationMs + offsetMs
	}
	if resolved < 0 {
		return 0
	}
	if resolved > durationMs {
		return durationMs
	}
	return resolved
}
