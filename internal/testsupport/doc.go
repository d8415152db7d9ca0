// Package testsupport provides shared helpers for tests: temp-dir configs,
// stubbed external binaries, and history store setup.
package testsupport
