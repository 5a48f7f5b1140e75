// Package queryir defines the backend-neutral query representation used to
// find world-state records by attribute.
//
// A query is always a Select over one document type with an optional
// conjunction of field-equals-literal predicates. Backends compile it to
// their own form: richquery emits the JSON selector handed to the store,
// querysql compiles it to SQLite, and the LevelDB backend walks its
// secondary index with it.
package queryir
