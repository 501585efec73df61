package repository

import "errors"

// ErrAlreadyExists reports a second Put of the same entity.
var ErrAlreadyExists = errors.New("entity already stored")
