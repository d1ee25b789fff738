package ppg

// minRedBlueRatio is the minimum red/blue intensity ratio for a sample
// to be consistent with light transmitted through perfused tissue.
const minRedBlueRatio = 1.3

// IsLive reports whether a single RGB sample is consistent with a human
// fingertip pressed over the light source. Blood and tissue reflect red
// strongly, so a genuine fingertip shows red > green > blue with a
// pronounced red/blue ratio. A bare lens or a non-tissue object does
// not reproduce this channel ordering, which makes the predicate the
// primary no-finger guard for all downstream stages.
func IsLive(s Sample) bool {
	if s.Red <= s.Green || s.Red <= s.Blue {
		return false
	}
	if s.Green <= s.Blue {
		return false
	}
	blue := s.Blue
	if blue == 0 {
		blue = 1
	}
	return s.Red/blue > minRedBlueRatio
}
