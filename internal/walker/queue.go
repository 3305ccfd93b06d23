package walker

import (
	"container/list"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
)

// workItem is a claimed instance whose members or elements still have to
// be migrated.
type workItem struct {
	old         heap.Value
	oldType     *meta.Type // type of old before any in-place retyping
	replacement heap.Value
	path        string
	root        string
}

// workQueue is the FIFO of pending instances. Draining it breadth-first
// keeps cyclic graphs bounded by the VisitedSet instead of the call stack.
type workQueue struct {
	queue *list.List
}

func newWorkQueue() *workQueue {
	return &workQueue{queue: list.New()}
}

// Enqueue adds an item to the back of the queue.
func (q *workQueue) Enqueue(item workItem) {
	q.queue.PushBack(item)
}

// Dequeue removes and returns the item at the front of the queue.
func (q *workQueue) Dequeue() (workItem, bool) {
	if q.queue.Len() == 0 {
		return workItem{}, false
	}
	elem := q.queue.Front()
	q.queue.Remove(elem)
	return elem.Value.(workItem), true
}

// Len returns the number of pending items.
func (q *workQueue) Len() int {
	return q.queue.Len()
}

// IsEmpty returns true if nothing is pending.
func (q *workQueue) IsEmpty() bool {
	return q.queue.Len() == 0
}
