package version

import (
	"fmt"
	"log/slog"
	"runtime"
)

// Name is the binary name reported in logs and -version output.
const Name = "isolation_vaults"

// Build information. Populated at build-time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains all the build-time information.
type BuildInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

func Get() BuildInfo {
	return BuildInfo{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
	}
}

// LogValue groups the build info under one attribute in structured logs.
func (b BuildInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", b.Version),
		slog.String("commit", shortCommit(b.GitCommit)),
		slog.String("go", b.GoVersion),
	)
}

func String() string {
	info := Get()
	return fmt.Sprintf("%s %s\nBuild Time: %s\nGit Commit: %s\nGo Version: %s",
		info.Name, info.Version, info.BuildTime, info.GitCommit, info.GoVersion)
}

// Short returns the version with an abbreviated commit when one is known.
func Short() string {
	if GitCommit != "unknown" && GitCommit != "" {
		return fmt.Sprintf("%s (%s)", Version, shortCommit(GitCommit))
	}
	return Version
}

func shortCommit(commit string) string {
	if len(commit) > 7 && commit != "unknown" {
		return commit[:7]
	}
	return commit
}
