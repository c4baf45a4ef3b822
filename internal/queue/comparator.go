package queue

// Comparator は2つのチケットの順序を返します（負: a が先、正: b が先）
type Comparator[T Ticket] func(a, b T) int

// Compare は優先順位表に従って a と b を比較します
//   - 両方とも順位なし、または同じ順位なら作成時刻の昇順
//   - 片方だけ順位なしなら、順位なしの方が後
//   - それ以外は順位の昇順
func Compare[T Ticket](p *Priorities, a, b T) int {
	ra, okA := p.Rank(a.TicketCategory())
	rb, okB := p.Rank(b.TicketCategory())
	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case okA && okB && ra != rb:
		if ra < rb {
			return -1
		}
		return 1
	}
	return a.TicketTime().Compare(b.TicketTime())
}

// ByPriority は優先順位表を参照する Comparator を返します
// 表はその都度参照されるため、後から更新しても反映されます
func ByPriority[T Ticket](p *Priorities) Comparator[T] {
	return func(a, b T) int { return Compare(p, a, b) }
}

// ByArrival は作成時刻だけで並べる Comparator を返します
func ByArrival[T Ticket]() Comparator[T] {
	return func(a, b T) int { return a.TicketTime().Compare(b.TicketTime()) }
}
