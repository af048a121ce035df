package install

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Decision is the answer to an existing destination
type Decision int

const (
	// DecisionNone is a non-answer and is treated as skip
	DecisionNone Decision = iota
	DecisionOverwrite
	DecisionRename
	DecisionSkip
)

func (d Decision) String() string {
	switch d {
	case DecisionOverwrite:
		return "overwrite"
	case DecisionRename:
		return "rename"
	case DecisionSkip:
		return "skip"
	default:
		return "none"
	}
}

// ParseDecision parses overwrite, rename or skip
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overwrite":
		return DecisionOverwrite, nil
	case "rename":
		return DecisionRename, nil
	case "skip":
		return DecisionSkip, nil
	}
	return DecisionNone, fmt.Errorf("unknown conflict decision %q (want overwrite, rename or skip)", s)
}

// Resolver decides what to do when dest already exists.
// dest is relative to the workspace root.
type Resolver interface {
	Resolve(ctx context.Context, dest string) (Decision, error)
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(ctx context.Context, dest string) (Decision, error)

func (f ResolverFunc) Resolve(ctx context.Context, dest string) (Decision, error) {
	return f(ctx, dest)
}

// FixedResolver answers every conflict the same way
type FixedResolver Decision

func (f FixedResolver) Resolve(context.Context, string) (Decision, error) {
	return Decision(f), nil
}

// ScriptedResolver replays a fixed sequence of decisions and records what it
// was asked. Once the script runs out it answers DecisionNone.
type ScriptedResolver struct {
	mu        sync.Mutex
	Decisions []Decision
	Asked     []string
}

func (s *ScriptedResolver) Resolve(_ context.Context, dest string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, dest)
	if len(s.Asked) > len(s.Decisions) {
		return DecisionNone, nil
	}
	return s.Decisions[len(s.Asked)-1], nil
}
