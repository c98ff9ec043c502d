// Package ent holds the generated entity client. Run `go generate ./...`
// from the repository root to regenerate it after editing ent/schema.
package ent

//go:generate go run -mod=mod entgo.io/ent/cmd/ent generate ./schema
