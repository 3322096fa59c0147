// Package runtime exposes build/version info and a panic stack-trace
// helper used by internal/worker's per-connection recovery, grounded
// on the teacher's server/middleware/recovery.Middleware.
package runtime

import (
	"runtime"
	"runtime/debug"
	"strings"
)

type RuntimeInfo struct {
	AppName     string `json:"app.name"`
	GoVersion   string `json:"go.version"`
	GoArch      string `json:"go.arch"`
	Vcs         string `json:"vcs"`
	VcsRevision string `json:"vcs.revision"`
	VcsTime     string `json:"vcs.time"`
	Dirty       bool   `json:"dirty"`
}

var BuildInfo RuntimeInfo

func init() {
	BuildInfo.Dirty = true
	BuildInfo.GoVersion = runtime.Version()
	BuildInfo.GoArch = runtime.GOARCH

	// -buildvcs=true / auto
	if info, ok := debug.ReadBuildInfo(); ok {
		paths := strings.Split(info.Path, "/")
		BuildInfo.AppName = paths[len(paths)-1]

		for _, kv := range info.Settings {
			switch kv.Key {
			case "vcs":
				BuildInfo.Vcs = kv.Value
			case "vcs.revision":
				BuildInfo.VcsRevision = kv.Value
				if len(BuildInfo.VcsRevision) > 8 {
					BuildInfo.VcsRevision = BuildInfo.VcsRevision[:8]
				}
			case "vcs.time":
				BuildInfo.VcsTime = kv.Value
			case "vcs.modified":
				BuildInfo.Dirty = kv.Value == "true"
			}
		}
	}
}

// PrintStackTrace returns the current goroutine's stack trace, skipping
// the first skip frames (the recovery middleware's own call frames).
func PrintStackTrace(skip int) string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	lines := strings.Split(string(buf[:n]), "\n")
	if skip*2+1 < len(lines) {
		lines = append(lines[:1], lines[skip*2+1:]...)
	}
	return strings.Join(lines, "\n")
}
