// Package ir defines the JSON intermediate representation ("CPL document")
// of a compiled Cardity protocol and the conversions around it.
//
// Compile lowers an ast.Protocol into a Document, Lift raises a Document
// back into an ast.Protocol, and Load parses JSON after validating it
// against the embedded CUE schema. Content hashes use RFC 8785 canonical
// JSON with domain separation so that identical units hash identically
// regardless of key order or formatting.
package ir
