// Package chunk provides the growable output buffer renders write into and the
// owned chunks it exports to HTTP writers.
package chunk
