package document

// ChangeKind определяет вид видимого изменения документа.
type ChangeKind uint8

const (
	ChangeInsert ChangeKind = iota + 1
	ChangeDelete
	ChangeMapSet
)

// String returns the change kind name
func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeDelete:
		return "delete"
	case ChangeMapSet:
		return "map_set"
	default:
		return "unknown"
	}
}

// Change описывает одно видимое изменение, произведенное транзакцией.
// Позиции считаются в символах Unicode (текст) или элементах (массив)
// относительно состояния документа непосредственно перед изменением.
//   - ChangeInsert: в Container по Index вставлено Length элементов, Value - вставленное
//   - ChangeDelete: из Container по Index удалено Length элементов, Value - удаленное
//   - ChangeMapSet: ключ Path (от корневой map) получил Value, до этого был Prev;
//     nil означает отсутствие ключа
//
// Value текста - string, массива - []any. Вложенные map представлены map[string]any.
type Change struct {
	Value     any
	Prev      any
	Container string
	Path      []string
	Index     int
	Length    int
	Kind      ChangeKind
	Type      Kind
}
