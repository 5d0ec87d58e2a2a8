package models

import "errors"

var (
	// ErrNotFound — запись не существует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState — операция недопустима в текущем состоянии записи.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict — нарушено ограничение уникальности.
	ErrConflict = errors.New("conflict")
)
