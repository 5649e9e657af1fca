// Package catalog loads the fixed, versioned list of compiler flags that the
// search is allowed to toggle.
//
// Catalogs are declared as CUE tables and validated against the embedded
// #Catalog schema. Each entry carries its canonical enabled and disabled
// spellings plus the toolchain versions that accept it. Entries that the
// requested toolchain version does not support, or that are excluded
// outright, are filtered out when the catalog is loaded; the resulting
// Catalog is immutable for the rest of the run.
package catalog
