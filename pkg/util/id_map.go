package util

// IDMap interns strings (street names, road class tags) into small
// integer ids so graph edges store ints instead of repeated strings.
type IDMap struct {
	strToID map[string]int
	idToStr map[int]string
}

func NewIdMap() IDMap {
	return IDMap{
		strToID: make(map[string]int),
		idToStr: make(map[int]string),
	}
}

// GetID returns the id for s, interning it on first sight.
func (m IDMap) GetID(s string) int {
	if id, ok := m.strToID[s]; ok {
		return id
	}
	id := len(m.strToID)
	m.strToID[s] = id
	m.idToStr[id] = s
	return id
}

func (m IDMap) GetStr(id int) string {
	return m.idToStr[id]
}

func (m IDMap) Size() int {
	return len(m.strToID)
}

// Strings returns the interned strings ordered by id.
func (m IDMap) Strings() []string {
	out := make([]string, len(m.idToStr))
	for id, s := range m.idToStr {
		out[id] = s
	}
	return out
}
