// Package version exposes build information, set at link time with -ldflags "-X".
package version

const name = "whistlelab"

var (
	version = "dev"
	commit  = "unknown"
)

func Name() string {
	return name
}

func Version() string {
	return version
}

func Commit() string {
	return commit
}
