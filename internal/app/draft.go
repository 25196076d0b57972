package app

// Draft tracks edits against the last fetched values. Changed always holds
// exactly the ids whose current value differs from the original.
type Draft struct {
	original map[string]string
	current  map[string]string
	changed  map[string]struct{}
}

type draftEntry struct {
	original, current       string
	hadOriginal, hadCurrent bool
	changed                 bool
}

func NewDraft() *Draft {
	d := &Draft{}
	d.Reset(nil)
	return d
}

// Reset makes values the new baseline and clears the diff set.
func (d *Draft) Reset(values map[string]string) {
	d.original = make(map[string]string, len(values))
	d.current = make(map[string]string, len(values))
	d.changed = make(map[string]struct{})
	for id, v := range values {
		d.original[id] = v
		d.current[id] = v
	}
}

func (d *Draft) Set(id, value string) {
	d.current[id] = value
	d.mark(id)
}

func (d *Draft) mark(id string) {
	if d.original[id] != d.current[id] {
		d.changed[id] = struct{}{}
	} else {
		delete(d.changed, id)
	}
}

func (d *Draft) Current(id string) string { return d.current[id] }

func (d *Draft) Original(id string) string { return d.original[id] }

func (d *Draft) Has(id string) bool {
	_, ok := d.current[id]
	return ok
}

func (d *Draft) IsChanged(id string) bool {
	_, ok := d.changed[id]
	return ok
}

func (d *Draft) ChangedCount() int { return len(d.changed) }

// ChangedIn returns the changed ids in the order given by ids.
func (d *Draft) ChangedIn(ids []string) []string {
	out := make([]string, 0, len(d.changed))
	for _, id := range ids {
		if d.IsChanged(id) {
			out = append(out, id)
		}
	}
	return out
}

// Commit makes the given values the new originals of their ids.
func (d *Draft) Commit(values map[string]string) {
	for id, v := range values {
		d.original[id] = v
		d.mark(id)
	}
}

// Rename moves all state of oldID to newID.
func (d *Draft) Rename(oldID, newID string) {
	if oldID == newID {
		return
	}
	e := d.remove(oldID)
	d.restore(newID, e)
}

func (d *Draft) remove(id string) draftEntry {
	e := draftEntry{}
	e.original, e.hadOriginal = d.original[id]
	e.current, e.hadCurrent = d.current[id]
	_, e.changed = d.changed[id]
	delete(d.original, id)
	delete(d.current, id)
	delete(d.changed, id)
	return e
}

func (d *Draft) restore(id string, e draftEntry) {
	if e.hadOriginal {
		d.original[id] = e.original
	}
	if e.hadCurrent {
		d.current[id] = e.current
	}
	if e.changed {
		d.changed[id] = struct{}{}
	}
}
