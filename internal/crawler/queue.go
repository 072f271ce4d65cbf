package crawler

import (
	"sync"
)

// QueueEntry is a frontier item: an article URL and the depth it was found at
type QueueEntry struct {
	URL   string
	Depth int
}

// Queue is the BFS frontier of a single crawl with its visited set.
// Unlike a work queue it never blocks: the crawl loop is its only consumer.
type Queue struct {
	mu      sync.Mutex
	items   []QueueEntry
	visited map[string]bool // key: canonical URL
}

// NewQueue creates a new BFS queue
func NewQueue() *Queue {
	return &Queue{
		items:   make([]QueueEntry, 0),
		visited: make(map[string]bool),
	}
}

// Push appends an entry unless its URL was already visited.
// Returns true if added.
func (q *Queue) Push(entry QueueEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.visited[entry.URL] {
		return false
	}
	q.items = append(q.items, entry)
	return true
}

// Pop removes and returns the first entry, or false when empty
func (q *Queue) Pop() (QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return QueueEntry{}, false
	}
	entry := q.items[0]
	q.items = q.items[1:]
	return entry, true
}

// MarkVisited records url as visited. Returns false if it already was.
func (q *Queue) MarkVisited(url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.visited[url] {
		return false
	}
	q.visited[url] = true
	return true
}

// IsVisited reports whether url was visited in this crawl
func (q *Queue) IsVisited(url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.visited[url]
}

// IsEmpty returns true if the queue has no items
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Size returns the current number of items in the queue
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// VisitedCount returns how many URLs were visited
func (q *Queue) VisitedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visited)
}
