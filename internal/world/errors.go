package world

import "errors"

var (
	// ErrInvalidCoordinate позиция не представима в сетке (NaN, Inf, переполнение)
	ErrInvalidCoordinate = errors.New("недопустимая координата")
	// ErrInvalidRadius радиус кисти вне [1, MaxRadius]
	ErrInvalidRadius = errors.New("недопустимый радиус кисти")
	// ErrUnknownShape неизвестная форма кисти
	ErrUnknownShape = errors.New("неизвестная форма кисти")
	// ErrUnsupportedVersion неподдерживаемая версия сериализованных данных
	ErrUnsupportedVersion = errors.New("неподдерживаемая версия данных объёма")
	// ErrCorruptChunk данные чанка повреждены
	ErrCorruptChunk = errors.New("повреждённые данные чанка")
)
