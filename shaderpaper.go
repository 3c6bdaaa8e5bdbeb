package shaderpaper

import _ "embed"

// Version is the release version, set from version.txt at build time.
//
//go:embed version.txt
var Version string

// DefaultConfig is the TOML configuration installed by --installconfig.
//
//go:embed shaderpaper.toml
var DefaultConfig string
