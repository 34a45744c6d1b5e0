package eventbus

import "errors"

// ErrBusClosed шина уже закрыта
var ErrBusClosed = errors.New("шина событий закрыта")
