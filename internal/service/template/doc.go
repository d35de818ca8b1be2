// Package template implements mapping template management.
//
// Templates are validated at save time: every rule must bind a known target
// field, bind it at most once, use a function that target accepts, and
// carry well-formed parameters. Catching this at authoring time keeps bad
// templates out of the import wizard entirely.
package template
