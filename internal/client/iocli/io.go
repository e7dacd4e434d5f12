package iocli

//go:generate moq -out io_mock.go . IO

// IO - ввод и вывод команд клиента
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	// IsTerminal сообщает, что вывод идет в терминал, а не в pipe или файл
	IsTerminal() bool
	Write(p []byte) (n int, err error)
}
