// Package storage persists which channel each guild wants its daily menu
// posted to, plus the broadcast loop's last firing date. Backed by sqlite
// (modernc.org/sqlite, cgo-free).
package storage
