// Package tgui holds Telegram presentation helpers: HTML-safe string
// building and message-length truncation.
package tgui
