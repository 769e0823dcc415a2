// Package logx is a small facade over zerolog.
//
// It exists so components take a value-type Logger with fixed fields
// (comp=..., plugin-style tagging) while the sink set and level remain
// swappable at runtime via Service.Apply().
package logx
