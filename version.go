package ctc

import (
	"fmt"
	"io"
	"runtime"
)

// Populated during build with -ldflags
var (
	Version   = "v0.1.0"
	GitRev    = "undefined"
	GitBranch = "undefined"
	BuildDate = "undefined"
)

// FullVersion describes the running binary
type FullVersion struct {
	Version   string
	GitRev    string
	GitBranch string
	BuildDate string
	GoVersion string
	OS        string
	Arch      string
}

func GetVersion() FullVersion {
	return FullVersion{
		Version:   Version,
		GitRev:    GitRev,
		GitBranch: GitBranch,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// PrintVersion writes the version block printed by `ctc version`
func PrintVersion(w io.Writer) {
	fmt.Fprint(w, GetVersion().String())
}

func (f FullVersion) String() string {
	return fmt.Sprintf("Version:      %s\n"+
		"Git revision: %s\n"+
		"Git branch:   %s\n"+
		"Go version:   %s\n"+
		"Built:        %s\n"+
		"OS/Arch:      %s/%s\n",
		f.Version, f.GitRev, f.GitBranch,
		f.GoVersion, f.BuildDate, f.OS, f.Arch)
}

// Fields returns the version as structured log key/value pairs
func (f FullVersion) Fields() []interface{} {
	return []interface{}{
		"version", f.Version,
		"gitRevision", f.GitRev,
		"gitBranch", f.GitBranch,
		"goVersion", f.GoVersion,
		"built", f.BuildDate,
		"os/arch", f.OS + "/" + f.Arch,
	}
}
