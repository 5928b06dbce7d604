package backend

import (
	"fmt"
	"strings"

	"github.com/aligator/fatvfs/checkpoint"
)

// resolve finds the entry of a logical path by walking the directories starting at the root.
// The root itself has no entry and is rejected with ErrNameNotAllowed, so callers
// which accept the root have to handle it before.
func resolve(vol Volume, p string) (Entry, error) {
	components := normalize(p)
	if len(components) == 0 {
		return nil, checkpoint.Wrap(fmt.Errorf("the root has no entry"), ErrNameNotAllowed)
	}

	dir := vol.RootDir()
	for i, component := range components {
		entries, err := dir.Entries()
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrNotFound)
		}

		entry := find(entries, component)
		if entry == nil {
			return nil, checkpoint.Wrap(fmt.Errorf("no entry %q in /%s", component, strings.Join(components[:i], "/")), ErrNotFound)
		}

		if i == len(components)-1 {
			return entry, nil
		}

		if !entry.IsDir() {
			return nil, checkpoint.Wrap(fmt.Errorf("%q is a file", entry.Name()), ErrNameNotAllowed)
		}

		dir, err = entry.Dir()
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrNotFound)
		}
	}

	// Not reachable as the last component always returns.
	return nil, checkpoint.From(ErrNotFound)
}

// find returns the first entry matching the name case-insensitively.
func find(entries []Entry, name string) Entry {
	for _, e := range entries {
		if strings.EqualFold(e.Name(), name) {
			return e
		}
	}
	return nil
}
