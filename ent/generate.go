// Package ent carries the go:generate directive for the entgo client of
// the schemas declared under ent/schema. The generated client is not
// checked in; `go generate ./ent` produces it.
package ent

//go:generate go run -mod=mod entgo.io/ent/cmd/ent generate ./schema
