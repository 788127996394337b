package storage

// Batch is a set of writes applied atomically by View.Apply. Operations are
// applied in the order they were added.
type Batch struct {
	ops           []op
	preconditions map[string]string
}

type op struct {
	key    string
	value  string
	remove bool
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Set(key, value string) *Batch {
	b.ops = append(b.ops, op{key: key, value: value})
	return b
}

func (b *Batch) Remove(keys ...string) *Batch {
	for _, k := range keys {
		b.ops = append(b.ops, op{key: k, remove: true})
	}
	return b
}

// IfEquals makes the whole batch conditional on key currently holding value.
// If the condition does not hold, Apply returns ErrPreconditionFailed and
// nothing is written.
func (b *Batch) IfEquals(key, value string) *Batch {
	if b.preconditions == nil {
		b.preconditions = make(map[string]string)
	}
	b.preconditions[key] = value
	return b
}

func (b *Batch) empty() bool {
	return len(b.ops) == 0
}
