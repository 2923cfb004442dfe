package version

// Version is the application version. Defaults to "dev" and is overwritten
// at build time via -ldflags.
var Version = "dev"

const AppName = "opsyield"
