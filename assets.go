// Package wardconsole provides the embedded web templates and static assets.
package wardconsole

import "embed"

// Embedded assets for production builds.
// WEB_DIR points development builds at the on-disk copies instead.

//go:embed all:web/static
var StaticFS embed.FS

//go:embed all:web/templates
var TemplateFS embed.FS
