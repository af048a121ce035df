package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/kennyg/folio/internal/artifact"
)

// Level grades a doctor check
type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelFail
)

// Check is one line of doctor output
type Check struct {
	Name   string
	Level  Level
	Detail string
}

// Doctor inspects configuration, credentials, the remote repository, the
// index cache and the workspace. It never writes anything.
func (a *App) Doctor(ctx context.Context) []Check {
	var checks []Check
	add := func(name string, level Level, format string, args ...any) {
		checks = append(checks, Check{Name: name, Level: level, Detail: fmt.Sprintf(format, args...)})
	}

	if len(a.Config.Sources) == 0 {
		add("config", LevelOK, "built-in defaults")
	} else {
		add("config", LevelOK, "%s", strings.Join(a.Config.Sources, ", "))
	}
	add("repository", LevelOK, "%s @ %s (allowlist: %s)", a.Repo, a.Config.Ref, strings.Join(a.Config.Allowlist, ", "))

	if a.Authenticated() {
		add("auth", LevelOK, "GitHub token found")
	} else {
		add("auth", LevelWarn, "no GitHub token; private catalogues will not be reachable")
	}

	probe, err := a.prober.ProbeRepo(ctx, a.Repo.Owner, a.Repo.Name, a.Config.Ref)
	switch {
	case err != nil:
		add("remote", LevelFail, "%v", err)
	case probe.RefSHA == "":
		add("remote", LevelWarn, "%s exists but ref %q does not resolve (default branch is %s)",
			probe.FullName, a.Config.Ref, probe.DefaultBranch)
	default:
		visibility := "public"
		if probe.Private {
			visibility = "private"
		}
		add("remote", LevelOK, "%s (%s), %s at %s", probe.FullName, visibility, a.Config.Ref, shortSHA(probe.RefSHA))
	}

	cached, err := a.Cache.Get(a.cacheKey())
	switch {
	case err != nil:
		add("cache", LevelWarn, "unreadable: %v", err)
	case cached == nil:
		add("cache", LevelWarn, "no cached index; run folio refresh")
	default:
		add("cache", LevelOK, "%s, validated %s", humanize.IBytes(uint64(len(cached.Body))),
			humanize.RelTime(cached.ValidatedAt, a.now(), "ago", "from now"))
	}

	root := a.Paths.WorkspaceRoot
	if root == "" {
		add("workspace", LevelFail, "%s", artifact.Describe(artifact.ErrNoWorkspace))
		return checks
	}
	if a.Config.Trusts(root) {
		add("workspace", LevelOK, "%s (trusted)", root)
	} else {
		add("workspace", LevelWarn, "%s is not trusted; installs need --trust", root)
	}

	r, err := a.Receipts.Read()
	switch {
	case err != nil:
		add("receipt", LevelWarn, "%s", artifact.Describe(err))
	case r == nil || len(r.Entries) == 0:
		add("receipt", LevelOK, "nothing installed")
	default:
		add("receipt", LevelOK, "%d installed, updated %s", len(r.Entries),
			humanize.RelTime(r.UpdatedAt, a.now(), "ago", "from now"))
	}
	return checks
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// Healthy reports whether no check failed
func Healthy(checks []Check) bool {
	for _, c := range checks {
		if c.Level == LevelFail {
			return false
		}
	}
	return true
}
