package status

import (
	"fmt"
	"runtime"
)

// Hash of the commit the binary was built on
var GitCommit = "0"

// Version tag the commit is on
var GitVersion string

// The branch the binary was built from
var GitBranch = "development"

func Version() string {
	if GitVersion != "" && GitVersion != "undefined" {
		return GitVersion
	}
	return GitBranch
}

func OSArch() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
