package obs

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Build identifies the running samaj-api binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// ReadBuild returns the build for version. An empty commit falls back to the
// VCS revision stamped by the go tool, shortened to 12 characters.
func ReadBuild(version, commit string) Build {
	b := Build{Version: version, Commit: commit, GoVersion: runtime.Version()}
	dirty := false
	if b.Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					b.Commit = s.Value
				case "vcs.modified":
					dirty = s.Value == "true"
				}
			}
		}
	}
	if len(b.Commit) > 12 {
		b.Commit = b.Commit[:12]
	}
	switch {
	case b.Commit == "":
		b.Commit = "unknown"
	case dirty:
		b.Commit += "-dirty"
	}
	return b
}

var (
	registerBuildInfo sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "samaj_build_info",
			Help: "Mero Samaj API build information.",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// Publish exports b as samaj_build_info. Only the most recently published
// build reports 1.
func (b Build) Publish() {
	registerBuildInfo.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.Reset()
	buildInfo.WithLabelValues(b.Version, b.Commit, b.GoVersion).Set(1)
}
