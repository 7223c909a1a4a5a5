package bank

// Pure list operations over question sets. Each returns a fresh slice so a
// template and a test generated from it never alias the same backing array.

// Add appends q and returns the new list.
func Add(list []Question, q Question) []Question {
	out := make([]Question, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, q)
	return out
}

// Update replaces the question with q.ID; if no match exists the list is
// returned unchanged (still copied).
func Update(list []Question, q Question) []Question {
	out := make([]Question, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID == q.ID {
			out[i] = q
		}
	}
	return out
}

// Remove drops the question with the given id.
func Remove(list []Question, id string) []Question {
	out := make([]Question, 0, len(list))
	for _, q := range list {
		if q.ID != id {
			out = append(out, q)
		}
	}
	return out
}

// Clone deep-copies a question set, including option slices.
func Clone(list []Question) []Question {
	out := make([]Question, len(list))
	copy(out, list)
	for i := range out {
		if out[i].Options != nil {
			opts := make([]string, len(out[i].Options))
			copy(opts, out[i].Options)
			out[i].Options = opts
		}
	}
	return out
}
