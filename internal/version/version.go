// Package version carries build metadata injected with -ldflags.
package version

import (
	"strconv"
	"strings"
)

var (
	Version   = "dev"
	Major     = "0"
	Minor     = "0"
	Patch     = "0"
	Built     = ""
	GitCommit = ""
)

type Info struct {
	Version   string `json:"version"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Major:     parseInt(Major),
		Minor:     parseInt(Minor),
		Patch:     parseInt(Patch),
		Built:     Built,
		GitCommit: GitCommit,
	}
}

// String renders the line printed by --version.
func (i Info) String() string {
	var builder strings.Builder
	builder.WriteString("assetwatch ")
	builder.WriteString(i.Version)
	var details []string
	if i.GitCommit != "" {
		details = append(details, "commit "+i.GitCommit)
	}
	if i.Built != "" {
		details = append(details, "built "+i.Built)
	}
	if len(details) > 0 {
		builder.WriteString(" (")
		builder.WriteString(strings.Join(details, ", "))
		builder.WriteString(")")
	}
	return builder.String()
}

// Fields returns the info as log fields.
func (i Info) Fields() map[string]string {
	fields := map[string]string{"version": i.Version}
	if i.GitCommit != "" {
		fields["commit"] = i.GitCommit
	}
	if i.Built != "" {
		fields["built"] = i.Built
	}
	return fields
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
