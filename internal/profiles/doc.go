// Package profiles is a file-backed identity directory used to populate
// participants that reference known users.
package profiles
