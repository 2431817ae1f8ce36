package section

// MinStationIncrement is the smallest step between consecutive stations
// after FixVerticalsAndOrder.
const MinStationIncrement = 0.001

// Options selects the normalization steps applied at load and save.
type Options struct {
	FixVerticals bool
	StartAtZero  bool

	// Unsortable is set when the station column holds values that must not
	// be made monotonic (the W column of height-width tables).
	Unsortable bool
}

// FixVerticalsAndOrder raises every station that is not at least
// MinStationIncrement above its predecessor, walking in stored order. The
// input is not modified. Running it twice gives the same result as once.
func FixVerticalsAndOrder(samples []Sample) []Sample {
	out := append([]Sample(nil), samples...)
	for i := 1; i < len(out); i++ {
		minNext := out[i-1].Station + MinStationIncrement
		if out[i].Station < minNext {
			out[i].Station = minNext
		}
	}
	return out
}

// NormalizeStartAtZero shifts all stations so the first sample sits at 0.
// The input is not modified.
func NormalizeStartAtZero(samples []Sample) []Sample {
	out := append([]Sample(nil), samples...)
	if len(out) == 0 {
		return out
	}
	shift := out[0].Station
	if shift == 0 {
		return out
	}
	for i := range out {
		out[i].Station -= shift
	}
	return out
}

// Normalize applies fix-verticals first, then start-at-zero.
func Normalize(samples []Sample, opts Options) []Sample {
	out := append([]Sample(nil), samples...)
	if opts.FixVerticals && !opts.Unsortable {
		out = FixVerticalsAndOrder(out)
	}
	if opts.StartAtZero {
		out = NormalizeStartAtZero(out)
	}
	return out
}

// Monotonic reports whether stations are strictly increasing. A NaN station
// breaks the order.
func Monotonic(samples []Sample) bool {
	for i := 1; i < len(samples); i++ {
		if !(samples[i].Station > samples[i-1].Station) {
			return false
		}
	}
	return true
}
