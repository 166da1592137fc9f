// Package assets embeds the prebuilt web client.
//
// index.html is produced from index.html.tpl, style.css, script.js and
// favicon.svg by cmd/minify.
package assets

import _ "embed"

// Index is the single page application.
//
//go:embed index.html
var Index []byte

// Favicon is the site icon.
//
//go:embed favicon.svg
var Favicon []byte
