// Package output renders command results for canvasvault-cli.
//
// Results are printed as an aligned table (the default), JSON or YAML.
// Long running operations report through a Spinner while the store opens
// and a ProgressBar while a snapshot is exported or imported.
package output
