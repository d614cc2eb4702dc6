package keyset

// Set は挿入順を保持する文字列識別子の集合。
// 追加済みの識別子の追加、存在しない識別子の削除はどちらも何もしない（冪等）。
type Set struct {
	ids   []string
	index map[string]struct{}
}

// NewSet は指定した識別子を含むSetを生成する。重複は最初の出現のみ残す。
func NewSet(ids ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has は識別子が集合に含まれる場合にtrueを返す。
func (s *Set) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Add は識別子を末尾に追加する。
func (s *Set) Add(id string) {
	if s.Has(id) {
		return
	}
	s.ids = append(s.ids, id)
	s.index[id] = struct{}{}
}

// Remove は識別子を削除する。
func (s *Set) Remove(id string) {
	if !s.Has(id) {
		return
	}
	delete(s.index, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
}

// Toggle は識別子の所属を反転し、反転後に含まれていればtrueを返す。
func (s *Set) Toggle(id string) bool {
	if s.Has(id) {
		s.Remove(id)
		return false
	}
	s.Add(id)
	return true
}

// IDs は挿入順の識別子のコピーを返す。
func (s *Set) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len は要素数を返す。
func (s *Set) Len() int {
	return len(s.ids)
}
