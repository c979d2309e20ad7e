package cache

// Node is an element of a List. It stores the key so that owners can
// delete the matching map entry in O(1) when the node is evicted.
type Node[K comparable] struct {
	Key  K
	prev *Node[K]
	next *Node[K]
}

// List is a doubly-linked recency list. The front is the most recently
// used key, the back the least recently used one.
//
// List is not safe for concurrent use; owners synchronize access.
type List[K comparable] struct {
	head *Node[K]
	tail *Node[K]
	len  int
}

// Len returns the number of nodes in the list.
func (l *List[K]) Len() int {
	return l.len
}

// PushFront inserts key as the most recently used node.
func (l *List[K]) PushFront(key K) *Node[K] {
	n := &Node[K]{Key: key}
	l.linkFront(n)
	return n
}

// MoveToFront marks n as the most recently used node.
func (l *List[K]) MoveToFront(n *Node[K]) {
	if n == nil || n == l.head {
		return
	}
	l.unlink(n)
	l.linkFront(n)
}

// Remove unlinks n. Removing a nil node is a no-op.
func (l *List[K]) Remove(n *Node[K]) {
	if n == nil {
		return
	}
	l.unlink(n)
}

// Oldest returns the least recently used node, or nil if the list is empty.
func (l *List[K]) Oldest() *Node[K] {
	return l.tail
}

// Newer returns the node used just after n, walking from the back to the
// front, or nil at the front.
func (l *List[K]) Newer(n *Node[K]) *Node[K] {
	if n == nil {
		return nil
	}
	return n.prev
}

// Clear drops every node.
func (l *List[K]) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}

func (l *List[K]) linkFront(n *Node[K]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
	l.len++
}

// unlink removes n from the list and clears its pointers.
func (l *List[K]) unlink(n *Node[K]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = nil
	l.len--
}
