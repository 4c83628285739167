package cache

// lruList is an intrusive doubly-linked list of entries.
// The list is not thread-safe; callers must handle synchronization.
//
// The head is the most recently used, tail is least recently used.
type lruList[V any] struct {
	head *entry[V]
	tail *entry[V]
	len  int
}

// Len returns the number of entries in the list.
func (l *lruList[V]) Len() int {
	return l.len
}

// PushFront links e at the front (most recently used).
func (l *lruList[V]) PushFront(e *entry[V]) {
	e.prev = nil
	e.next = l.head
	if l.head != nil {
		l.head.prev = e
	}
	l.head = e
	if l.tail == nil {
		l.tail = e
	}
	l.len++
}

// MoveToFront moves a linked entry to the front.
func (l *lruList[V]) MoveToFront(e *entry[V]) {
	if e == l.head {
		return
	}
	l.unlink(e)
	l.PushFront(e)
}

// Remove unlinks e from the list.
func (l *lruList[V]) Remove(e *entry[V]) {
	l.unlink(e)
}

// Oldest returns the least recently used entry, or nil.
func (l *lruList[V]) Oldest() *entry[V] {
	return l.tail
}

func (l *lruList[V]) unlink(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev = nil
	e.next = nil
	l.len--
}
