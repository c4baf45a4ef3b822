package queue

import (
	"cmp"
	"container/heap"
	"errors"
	"slices"
)

// カスタムエラー定義
var (
	ErrDuplicateTicket = errors.New("ticket already queued")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrQueueEmpty      = errors.New("queue is empty")
)

// WaitingQueue は順序を持たないチケットの集合です
// 取り出し（Poll）は二分ヒープで O(log n)、一覧（Snapshot）は呼び出しごとにソートします
// 並行アクセスは想定していません（呼び出し側のロックで保護します）
type WaitingQueue[T Ticket] struct {
	entries map[string]*entry[T] // チケットIDをキーとした要素
	heap    ticketHeap[T]        // 優先順位表 heap.priorities で並んだヒープ
	valid   bool                 // heap がヒープ条件を満たしているか
	seq     uint64               // 追加順の通し番号
}

type entry[T Ticket] struct {
	item  T
	seq   uint64 // 同順位・同時刻のときの決定的な並び
	index int    // heap 内の位置
}

// NewWaitingQueue は空のキューを作成します
func NewWaitingQueue[T Ticket]() *WaitingQueue[T] {
	return &WaitingQueue[T]{entries: make(map[string]*entry[T])}
}

func (q *WaitingQueue[T]) Len() int { return len(q.entries) }

// Add はチケットを追加します。同じIDが既にある場合は ErrDuplicateTicket
func (q *WaitingQueue[T]) Add(item T) error {
	id := item.TicketID()
	if _, exists := q.entries[id]; exists {
		return ErrDuplicateTicket
	}
	q.seq++
	e := &entry[T]{item: item, seq: q.seq}
	q.entries[id] = e
	if q.valid {
		heap.Push(&q.heap, e)
	} else {
		e.index = len(q.heap.items)
		q.heap.items = append(q.heap.items, e)
	}
	return nil
}

// Remove はIDでチケットを取り除きます。存在しない場合は ErrTicketNotFound
func (q *WaitingQueue[T]) Remove(id string) (T, error) {
	e, ok := q.entries[id]
	if !ok {
		var zero T
		return zero, ErrTicketNotFound
	}
	delete(q.entries, id)
	if q.valid {
		heap.Remove(&q.heap, e.index)
	} else {
		q.heap.swapRemove(e.index)
	}
	return e.item, nil
}

// Get はIDでチケットを取得します
func (q *WaitingQueue[T]) Get(id string) (T, bool) {
	e, ok := q.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.item, true
}

// Update は同じIDのチケットを置き換えます（追加順は維持）
func (q *WaitingQueue[T]) Update(item T) error {
	e, ok := q.entries[item.TicketID()]
	if !ok {
		return ErrTicketNotFound
	}
	e.item = item
	if q.valid {
		heap.Fix(&q.heap, e.index)
	}
	return nil
}

// Snapshot は cmp で並べた新しいスライスを返します
// 集合の中身は変更しません。cmp が 0 を返す場合は追加順です
func (q *WaitingQueue[T]) Snapshot(less Comparator[T]) []T {
	es := make([]*entry[T], 0, len(q.entries))
	for _, e := range q.entries {
		es = append(es, e)
	}
	slices.SortFunc(es, func(a, b *entry[T]) int {
		if c := less(a.item, b.item); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	out := make([]T, len(es))
	for i, e := range es {
		out[i] = e.item
	}
	return out
}

// Peek は優先順位表 p で最も先に対応すべきチケットを返します（取り除きません）
func (q *WaitingQueue[T]) Peek(p *Priorities) (T, error) {
	if len(q.entries) == 0 {
		var zero T
		return zero, ErrQueueEmpty
	}
	q.order(p)
	return q.heap.items[0].item, nil
}

// Poll は優先順位表 p で最も先に対応すべきチケットを取り除いて返します
func (q *WaitingQueue[T]) Poll(p *Priorities) (T, error) {
	if len(q.entries) == 0 {
		var zero T
		return zero, ErrQueueEmpty
	}
	q.order(p)
	e := heap.Pop(&q.heap).(*entry[T])
	delete(q.entries, e.item.TicketID())
	return e.item, nil
}

// order は表 p（とそのリビジョン）が前回と異なる場合のみヒープを組み直します
func (q *WaitingQueue[T]) order(p *Priorities) {
	if q.valid && q.heap.priorities == p && q.heap.revision == p.Revision() {
		return
	}
	q.heap.priorities = p
	q.heap.revision = p.Revision()
	heap.Init(&q.heap)
	q.valid = true
}

// ticketHeap は container/heap 用の実装です
type ticketHeap[T Ticket] struct {
	items      []*entry[T]
	priorities *Priorities
	revision   uint64
}

func (h *ticketHeap[T]) Len() int { return len(h.items) }

func (h *ticketHeap[T]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if c := Compare(h.priorities, a.item, b.item); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

func (h *ticketHeap[T]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *ticketHeap[T]) Push(x any) {
	e := x.(*entry[T])
	e.index = len(h.items)
	h.items = append(h.items, e)
}

func (h *ticketHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	e.index = -1
	return e
}

// swapRemove はヒープ条件を気にせず i 番目を取り除きます
func (h *ticketHeap[T]) swapRemove(i int) {
	last := len(h.items) - 1
	if i != last {
		h.items[i] = h.items[last]
		h.items[i].index = i
	}
	h.items[last] = nil
	h.items = h.items[:last]
}
