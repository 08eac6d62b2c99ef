// Package primitives holds the declarative machine description: a
// serializable, callback-free form of a graph in which states, events and
// callbacks are referred to by name.
//
// Descriptions are read from YAML or JSON, validated here, and compiled into
// an hfsm.Graph by the builder package, which resolves callback names
// against an application registry and assigns numeric ids.
package primitives
