// Package repository implements the link store on PostgreSQL and in memory.
//
// Slug uniqueness is enforced by the store itself: Insert reports ErrSlugExists when
// another link already holds the slug, regardless of any check the caller made before.
// Writes are scoped by owner; touching a link owned by someone else yields ErrNotFound.
package repository

import "errors"

var (
	ErrSlugExists = errors.New("slug already exists")
	ErrNotFound   = errors.New("link not found")
)
