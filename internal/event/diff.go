package event

// Collect normalizes raw item texts into a set. Texts that normalize to nothing are
// dropped.
func Collect(raw []string) Set {
	set := NewSet()
	for _, text := range raw {
		set.Add(Normalize(text))
	}
	return set
}

// Diff returns the items in current that are absent from previous.
//
// An empty previous set makes every current item new; this is how the first run
// reports the whole page. An empty current set yields an empty result, never an
// error: deciding whether an empty page is suspicious is up to the caller.
func Diff(previous, current Set) Set {
	added := NewSet()
	for item := range current.items {
		if !previous.Has(item) {
			added.Add(item)
		}
	}
	return added
}
