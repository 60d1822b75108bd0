package entity

import (
	"fmt"
	"strings"
)

type Container string

const (
	ContainerOriginal Container = "original"
	ContainerMP3      Container = "mp3"
)

// ParseContainer accepts the target container names used by clients. Native
// container names and the empty string mean "keep the source as is".
func ParseContainer(s string) (Container, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "original", "mp4", "webm":
		return ContainerOriginal, nil
	case "mp3":
		return ContainerMP3, nil
	}

	return "", fmt.Errorf("unknown container %q", s)
}

// TransferRequest asks for one media format of a video, optionally re-encoded.
type TransferRequest struct {
	SourceURL       string
	FormatSelector  string
	TargetContainer Container
}

// ProxyRequest asks for an arbitrary HTTP resource.
type ProxyRequest struct {
	ResourceURL  string
	FilenameHint string
}

type State int

const (
	StateIdle State = iota
	StateResolving
	StateStreaming
	StateCompleted
	StateFailed
	StateAborted
)

func (s State) String() string {
	return [...]string{"Idle", "Resolving", "Streaming", "Completed", "Failed", "Aborted"}[s]
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAborted
}
