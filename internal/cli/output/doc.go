// Package output renders command results for snapctl.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: Aligned tables that measure cells by display width
//   - json.go, yaml.go: Machine-readable output
//   - progress.go: Progress bar for imports and backups
//
// Table headers come from yaml tags, then json tags, then the field name.
// Fields tagged `table:"wide"` appear only in wide mode.
package output
