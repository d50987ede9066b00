package domain

import "errors"

var (
	ErrArticleNotFound   = errors.New("article not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)
