package cache

// Mutation describes a successful write to one entity of Kind. Value is the record as
// the remote store returned it; it is ignored when Deleted is set.
type Mutation[T any] struct {
	Kind    Kind
	ID      string
	Value   T
	Deleted bool
	// IDOf extracts the identifier of a list element, used to patch the cached list.
	IDOf func(T) string
	// Also lists extra keys to invalidate, such as derived cross-entity views.
	Also []Key
}

// ApplyMutation reflects a completed write in the cache. Lists and stats of the kind
// (and m.Also) are invalidated so their next read refetches; the entity's detail key
// is patched, or dropped on delete; and the cached full list is patched so a Peek
// shows the change before the refetch lands.
//
// It must only be called after the remote write succeeded.
func ApplyMutation[T any](c *Cache, m Mutation[T]) {
	keys := append([]Key{List(m.Kind), Stats(m.Kind)}, m.Also...)
	c.Invalidate(keys...)

	detail := Detail(m.Kind, m.ID)
	if m.Deleted {
		c.Remove(detail)
	} else {
		c.SetOptimistic(detail, m.Value)
	}

	if m.IDOf == nil {
		return
	}
	Patch(c, List(m.Kind), func(list []T) []T {
		out := make([]T, 0, len(list)+1)
		found := false
		for _, item := range list {
			if m.IDOf(item) != m.ID {
				out = append(out, item)
				continue
			}
			found = true
			if !m.Deleted {
				out = append(out, m.Value)
			}
		}
		if !found && !m.Deleted {
			out = append([]T{m.Value}, out...)
		}
		return out
	})
}
