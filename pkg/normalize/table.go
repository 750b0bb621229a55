package normalize

// Keyed rows have a primary key
type Keyed interface {
	Key() string
}

// Table is an append-only buffer of rows for one collection. Pages are kept
// as separate chunks and flattened once when Rows is first called.
type Table[T Keyed] struct {
	chunks [][]T
	n      int
	flat   []T
}

// Append adds a page of rows.
func (t *Table[T]) Append(rows ...T) {
	if len(rows) == 0 {
		return
	}
	chunk := make([]T, len(rows))
	copy(chunk, rows)
	t.chunks = append(t.chunks, chunk)
	t.n += len(rows)
	t.flat = nil
}

// Len returns the number of rows appended so far
func (t *Table[T]) Len() int { return t.n }

// Rows returns all rows in append order.
func (t *Table[T]) Rows() []T {
	if t.flat != nil || t.n == 0 {
		return t.flat
	}
	t.flat = make([]T, 0, t.n)
	for _, c := range t.chunks {
		t.flat = append(t.flat, c...)
	}
	t.chunks = [][]T{t.flat}
	return t.flat
}

// Index builds the primary-key index. For duplicate keys the first row wins.
func (t *Table[T]) Index() *Index[T] {
	rows := t.Rows()
	idx := &Index[T]{rows: rows, pos: make(map[string]int, len(rows))}
	for i, r := range rows {
		if _, dup := idx.pos[r.Key()]; !dup {
			idx.pos[r.Key()] = i
		}
	}
	return idx
}

// Index is a read-only primary-key lookup over a table's rows.
type Index[T Keyed] struct {
	rows []T
	pos  map[string]int
}

// NewIndex indexes rows directly.
func NewIndex[T Keyed](rows []T) *Index[T] {
	var t Table[T]
	t.Append(rows...)
	return t.Index()
}

// Lookup returns the row with key.
func (i *Index[T]) Lookup(key string) (T, bool) {
	p, ok := i.pos[key]
	if !ok {
		var zero T
		return zero, false
	}
	return i.rows[p], true
}

// Len returns the number of distinct keys
func (i *Index[T]) Len() int { return len(i.pos) }
