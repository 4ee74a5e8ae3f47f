// Package directory provides the provider catalog consumed when creating
// requests and when deciding whether an identity may act as a provider.
// The catalog never fails from the caller's point of view: if the backing
// source errors, the last good listing (or the built-in default catalog) is
// served instead.
package directory
