package document

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"

	"github.com/automerge/automerge-go"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Версия бинарного формата обновлений и state vector.
// Первый байт blob - версия, далее записи в wire-формате protobuf.
const formatVersion byte = 2

// Номера полей wire-формата
const (
	fieldUpdateChanges protowire.Number = 1

	fieldSVEntry protowire.Number = 1
	fieldSVActor protowire.Number = 1
	fieldSVSeq   protowire.Number = 2
)

// ClientID идентифицирует реплику документа.
type ClientID uint64

// NewClientID генерирует идентификатор реплики из случайного UUID.
// Ноль зарезервирован и никогда не возвращается.
func NewClientID() ClientID {
	u := uuid.New()
	id := ClientID(binary.BigEndian.Uint64(u[:8]))
	if id == 0 {
		id = 1
	}
	return id
}

// actor возвращает идентификатор реплики в формате automerge (hex).
func (id ClientID) actor() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// stateVector - для каждого actor номер последнего учтенного изменения.
type stateVector map[string]uint64

// advance поднимает счетчики до номеров переданных изменений.
func (sv stateVector) advance(changes []*automerge.Change) {
	for _, ch := range changes {
		if seq := ch.ActorSeq(); seq > sv[ch.ActorID()] {
			sv[ch.ActorID()] = seq
		}
	}
}

// covers reports whether the change is already incorporated
func (sv stateVector) covers(ch *automerge.Change) bool {
	return ch.ActorSeq() <= sv[ch.ActorID()]
}

// EmptyStateVector returns the encoded state vector of an empty document
func EmptyStateVector() []byte {
	return []byte{formatVersion}
}

// IsEmptyUpdate reports whether update is a well-formed update without changes
func IsEmptyUpdate(update []byte) bool {
	return len(update) == 1 && update[0] == formatVersion
}

// encodeStateVector сериализует state vector. Записи упорядочены по actor,
// поэтому одинаковые state vector всегда дают одинаковые байты.
func encodeStateVector(sv stateVector) ([]byte, error) {
	b := []byte{formatVersion}
	for _, actor := range slices.Sorted(maps.Keys(sv)) {
		seq := sv[actor]
		if seq == 0 {
			continue
		}
		raw, err := hex.DecodeString(actor)
		if err != nil {
			return nil, fmt.Errorf("invalid actor id %q: %w", actor, err)
		}
		var entry []byte
		entry = protowire.AppendTag(entry, fieldSVActor, protowire.BytesType)
		entry = protowire.AppendBytes(entry, raw)
		entry = protowire.AppendTag(entry, fieldSVSeq, protowire.VarintType)
		entry = protowire.AppendVarint(entry, seq)

		b = protowire.AppendTag(b, fieldSVEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b, nil
}

// decodeStateVector разбирает state vector. Некорректные данные возвращают ErrDecode.
func decodeStateVector(data []byte) (stateVector, error) {
	body, err := versioned(data)
	if err != nil {
		return nil, err
	}

	sv := make(stateVector)
	err = walk(body, func(num protowire.Number, typ protowire.Type, val []byte) error {
		if num != fieldSVEntry {
			return nil
		}
		entry, err := bytesValue(typ, val)
		if err != nil {
			return err
		}
		var actor []byte
		var seq uint64
		err = walk(entry, func(num protowire.Number, typ protowire.Type, val []byte) error {
			var err error
			switch num {
			case fieldSVActor:
				actor, err = bytesValue(typ, val)
			case fieldSVSeq:
				seq, err = varintValue(typ, val)
			}
			return err
		})
		if err != nil {
			return err
		}
		if len(actor) == 0 {
			return fmt.Errorf("%w: state vector entry without actor", ErrDecode)
		}
		key := hex.EncodeToString(actor)
		if seq > sv[key] {
			sv[key] = seq
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sv, nil
}

// encodeUpdate упаковывает изменения automerge в версионированный blob.
// Обновление без изменений кодируется одним байтом версии.
func encodeUpdate(changes []*automerge.Change) []byte {
	b := []byte{formatVersion}
	if len(changes) == 0 {
		return b
	}
	b = protowire.AppendTag(b, fieldUpdateChanges, protowire.BytesType)
	return protowire.AppendBytes(b, automerge.SaveChanges(changes))
}

// decodeUpdate разбирает blob обновления. Поврежденные изменения
// (в том числе с неверной контрольной суммой) возвращают ErrDecode.
func decodeUpdate(data []byte) ([]*automerge.Change, error) {
	body, err := versioned(data)
	if err != nil {
		return nil, err
	}
	var out []*automerge.Change
	err = walk(body, func(num protowire.Number, typ protowire.Type, val []byte) error {
		if num != fieldUpdateChanges {
			return nil
		}
		raw, err := bytesValue(typ, val)
		if err != nil {
			return err
		}
		changes, err := automerge.LoadChanges(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDecode, err)
		}
		out = append(out, changes...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// versioned проверяет байт версии и возвращает тело blob.
func versioned(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if data[0] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrDecode, data[0])
	}
	return data[1:], nil
}

// walk обходит поля wire-формата. Неизвестные поля пропускаются.
func walk(b []byte, visit func(num protowire.Number, typ protowire.Type, val []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(n))
		}
		b = b[n:]
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(m))
		}
		if err := visit(num, typ, b[:m]); err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func varintValue(typ protowire.Type, val []byte) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: unexpected wire type %d", ErrDecode, typ)
	}
	v, n := protowire.ConsumeVarint(val)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(n))
	}
	return v, nil
}

func bytesValue(typ protowire.Type, val []byte) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, fmt.Errorf("%w: unexpected wire type %d", ErrDecode, typ)
	}
	v, n := protowire.ConsumeBytes(val)
	if n < 0 {
		return nil, fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(n))
	}
	return v, nil
}
