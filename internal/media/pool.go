package media

import "math/rand/v2"

// PickRandom selects from a scan of dir, excluding the previous pick when
// the pool has more than one candidate so rotations never visibly repeat.
func PickRandom(dir, previous string) (Source, error) {
	sources, err := Scan(dir)
	if err != nil {
		return Source{}, err
	}

	if previous != "" && len(sources) > 1 {
		alternatives := sources[:0:0]
		for _, s := range sources {
			if s.Path != previous {
				alternatives = append(alternatives, s)
			}
		}
		if len(alternatives) > 0 {
			sources = alternatives
		}
	}

	return sources[rand.IntN(len(sources))], nil
}

// PickNext returns the entry after previous in sorted order, wrapping at
// the end. An unknown or empty previous starts at the beginning.
func PickNext(dir, previous string) (Source, error) {
	sources, err := Scan(dir)
	if err != nil {
		return Source{}, err
	}

	next := 0
	for i, s := range sources {
		if s.Path == previous {
			next = (i + 1) % len(sources)
			break
		}
	}
	return sources[next], nil
}
