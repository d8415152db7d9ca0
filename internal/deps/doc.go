// Package deps checks availability of the external binaries remux invokes.
package deps
