package httpapi

import _ "embed"

// clientScript toggles profile field containers in the browser from the page's MTCF snapshot.
//
//go:embed assets/mtcf.js
var clientScript []byte
