package book

import "fmt"

// Level holds every resting order at one exact price on one side of the
// book, as an intrusive doubly-linked FIFO queue. Orders enqueue at the
// tail and match from the head, which gives exact time priority without
// timestamps.
type Level struct {
	Price int64

	head, tail *Order

	// Count and Total are maintained on every enqueue/unlink/reduce so
	// depth queries never walk the queue.
	Count int
	Total int64
}

// Head returns the oldest order at this price, or nil if empty.
func (l *Level) Head() *Order { return l.head }

func (l *Level) enqueue(o *Order) {
	o.level = l
	if l.head == nil {
		l.head = o
		l.tail = o
	} else {
		l.tail.next = o
		o.prev = l.tail
		l.tail = o
	}
	l.Count++
	l.Total += o.Remaining
}

// unlink removes o from the queue. o must belong to this level.
func (l *Level) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		l.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		l.tail = o.prev
	}
	l.Count--
	l.Total -= o.Remaining
	o.next = nil
	o.prev = nil
	o.level = nil
}

// reduce shrinks o's remaining amount by qty, keeping Total in sync.
func (l *Level) reduce(o *Order, qty int64) {
	o.Remaining -= qty
	l.Total -= qty
}

func (l *Level) String() string {
	return fmt.Sprintf("level{price=%d orders=%d total=%d}", l.Price, l.Count, l.Total)
}
