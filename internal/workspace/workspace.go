// Package workspace inspects the directory the client was started in: its
// path for the header and its git branch for the status bar.
package workspace

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

const (
	// NoGit is reported when the directory is not inside a git work tree or
	// git is not installed.
	NoGit = "no-git"
	// Detached is reported when HEAD has no branch name.
	Detached = "detached"

	gitTimeout = 2 * time.Second
)

// Runner executes a command in dir and returns its stdout.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Context describes the working directory. Command execution is injectable
// so tests do not depend on git being installed.
type Context struct {
	root     string
	lookPath func(string) (string, error)
	run      Runner
}

// NewContext returns a Context rooted at root using the host PATH.
func NewContext(root string) *Context {
	return &Context{
		root:     root,
		lookPath: exec.LookPath,
		run:      execRunner,
	}
}

// NewContextWithRunner overrides command lookup and execution.
func NewContextWithRunner(root string, lookPath func(string) (string, error), run Runner) *Context {
	c := NewContext(root)
	if lookPath != nil {
		c.lookPath = lookPath
	}
	if run != nil {
		c.run = run
	}
	return c
}

// Current returns a Context for the process working directory.
func Current() (*Context, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return NewContext(cwd), nil
}

// Root returns the inspected directory.
func (c *Context) Root() string {
	return c.root
}

// Branch returns the checked-out branch, Detached for an anonymous HEAD or
// NoGit when git cannot answer.
func (c *Context) Branch(ctx context.Context) string {
	if _, err := c.lookPath("git"); err != nil {
		return NoGit
	}
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	out, err := c.run(ctx, c.root, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return NoGit
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" || branch == "HEAD" {
		return Detached
	}
	return branch
}

// ShortPath fits the root into width terminal cells, keeping the tail and
// marking the cut with an ellipsis.
func (c *Context) ShortPath(width int) string {
	return TruncateLeft(c.root, width)
}

// TruncateLeft keeps the rightmost part of s that fits in width cells.
func TruncateLeft(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	const ellipsis = "…"
	budget := width - runewidth.StringWidth(ellipsis)
	runes := []rune(s)
	used := 0
	start := len(runes)
	for start > 0 {
		w := runewidth.RuneWidth(runes[start-1])
		if used+w > budget {
			break
		}
		used += w
		start--
	}
	return ellipsis + string(runes[start:])
}

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.Output()
}
