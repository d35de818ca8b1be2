// Package importer implements the import session lifecycle.
//
// The service layer is the only component with write authority over
// persisted session state. It drives the stage transitions
// (initiate → stage/preview → commit), aggregates per-stage counters, and
// coordinates the tabulator, rule engine, and template validator. It
// depends on repository interfaces defined in this package and should
// never import from api/.
//
// Repository implementations live in repository/postgres/.
package importer
