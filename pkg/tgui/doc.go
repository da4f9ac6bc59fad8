// Package tgui holds small Telegram UI helpers: inline keyboard builders,
// "ns:action:payload" callback data, and HTML-safe text for ParseMode=HTML.
package tgui
