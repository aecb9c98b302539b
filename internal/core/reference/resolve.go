package reference

// Table is an in-memory lookup keyed by entity id.
type Table[T Identifiable] map[string]T

func NewTable[T Identifiable](entities []T) Table[T] {
	t := make(Table[T], len(entities))
	for _, e := range entities {
		t[e.RefID()] = e
	}
	return t
}

func (t Table[T]) Put(entity T) {
	t[entity.RefID()] = entity
}

// Resolve returns the entity behind ref: inline values as-is, ids through
// table. Missing ids and empty references yield nil.
func Resolve[T Identifiable](ref Reference[T], table Table[T]) *T {
	switch ref.kind {
	case KindInline:
		entity := ref.inline
		return &entity
	case KindID:
		if table == nil {
			return nil
		}
		entity, ok := table[ref.id]
		if !ok {
			return nil
		}
		return &entity
	default:
		return nil
	}
}
