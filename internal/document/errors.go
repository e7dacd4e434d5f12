package document

import (
	"errors"
)

// Ошибки документа
var (
	// ErrDecode indicates malformed update or state vector bytes
	ErrDecode = errors.New("decode error")

	// ErrRange indicates a text or array index/length outside the content bounds
	ErrRange = errors.New("index out of range")

	// ErrPath indicates an empty deep-set path or a non-string path segment
	ErrPath = errors.New("invalid path")

	// ErrType indicates an unsupported value type or a container kind conflict
	ErrType = errors.New("unsupported type")

	// ErrUndo indicates an internal inconsistency while undoing or redoing
	ErrUndo = errors.New("undo failed")

	// ErrLock indicates a reentrant transaction on the same document
	ErrLock = errors.New("document is locked by the current transaction")
)
