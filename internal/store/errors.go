package store

import "errors"

var (
	ErrNotFound        = errors.New("deal not found")
	ErrInvalidStage    = errors.New("stage outside canonical set")
	ErrOrphanedContact = errors.New("contact references a deal outside the batch")
)
