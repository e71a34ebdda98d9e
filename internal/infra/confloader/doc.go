// Package confloader loads layered configuration with koanf.
//
// Sources are applied lowest priority first:
//
//  1. Defaults already present in the target struct
//  2. A YAML configuration file
//  3. Environment variables (TRAJSNAP_SECTION_KEY)
//  4. Maps supplied by the caller, typically parsed command-line flags
//
// Environment names are matched against the koanf tags of the target,
// so TRAJSNAP_STORAGE_BADGER_GC_INTERVAL resolves to the key
// storage.badger.gc_interval even though both separators are underscores.
// Keys backed by a []string field take a comma-separated value.
package confloader
