package world

import "ownworld/pkg/rng"

// Word lists backing the procedural star-system name generator. Finite and
// hand-curated; the generator's uniqueness guarantee comes from retrying
// draws against the issued-name set, not from the pool size.
var (
	namePrefixes = []string{"Al", "Bel", "Cor", "Dra", "El", "Fen", "Gor", "Hy", "Io", "Jor", "Kal", "Lun", "Mor", "Nov", "Os", "Pyr", "Quor", "Ryn", "Syl", "Tau", "Ur", "Vex", "Wyr", "Xal", "Yr", "Zan"}
	nameRoots    = []string{"dor", "thar", "mir", "vash", "kesh", "lorn", "gris", "theon", "vane", "quil", "brak", "sol", "thyr", "morn", "xira", "drel", "vost", "ilan", "caro", "nexar"}
	nameSuffixes = []string{"ia", "is", "us", "ar", "on", "eth", "oth", "yx", "um", "ae", "or", "ix", "an", "ev", "yl"}

	standaloneNames = []string{"Perihel", "Voidmark", "Cindergate", "Farstead", "Hollowreach", "Emberfall", "Glasswake", "Duskharbor", "Ashfarer", "Wanefield", "Brightshear", "Graveport", "Stillbrand", "Coldvane", "Saltmeridian"}
	nameModifiers   = []string{"Prime", "Minor", "Major", "Reach", "Expanse", "Drift", "Verge", "Cradle", "Remnant", "Gate"}
)

const maxNameDraws = 100

// generateSystemName draws a procedurally unique name using one of three
// styles, retrying against `taken` up to maxNameDraws times. The final draw
// is returned regardless of collision so the caller always gets a name. The
// pools hold 7,800 prefix×root×suffix names, 150 standalone+modifier names
// and 25,974 prefix-numeral names.
func generateSystemName(src rng.Source, taken map[string]bool) string {
	var candidate string
	for attempt := 0; attempt < maxNameDraws; attempt++ {
		switch src.Intn(3) {
		case 0:
			candidate = namePrefixes[src.Intn(len(namePrefixes))] +
				nameRoots[src.Intn(len(nameRoots))] +
				nameSuffixes[src.Intn(len(nameSuffixes))]
		case 1:
			candidate = standaloneNames[src.Intn(len(standaloneNames))] + " " +
				nameModifiers[src.Intn(len(nameModifiers))]
		default:
			candidate = namePrefixes[src.Intn(len(namePrefixes))] + "-" + itoaSmall(1+src.Intn(999))
		}
		if !taken[candidate] {
			return candidate
		}
	}
	return candidate
}

func itoaSmall(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
