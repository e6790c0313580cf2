// Package commands owns the slash-command catalog and turns typed slash
// commands into the command names the backend understands.
package commands

import (
	"strings"
	"unicode"

	"github.com/asynkron/openx/internal/core/state"
)

var builtins = []state.CommandEntry{
	{Name: "/help", Description: "Show help and available commands"},
	{Name: "/tools", Description: "List all available MCP tools"},
	{Name: "/schema", Description: "Show tool schema / parameters"},
	{Name: "/call", Description: "Call a tool directly"},
	{Name: "/analyze", Description: "Analyze a repository"},
	{Name: "/repos", Description: "List repositories"},
	{Name: "/prs", Description: "List pull requests"},
	{Name: "/pr", Description: "Get pull request details"},
	{Name: "/issues", Description: "List issues in a repo"},
	{Name: "/issue", Description: "Get issue details"},
	{Name: "/newissue", Description: "Create a new issue"},
	{Name: "/commentissue", Description: "Comment on an issue"},
	{Name: "/closeissue", Description: "Close an issue"},
	{Name: "/comment", Description: "Comment on a pull request"},
	{Name: "/merge", Description: "Merge a pull request"},
	{Name: "/readme", Description: "Get or update README"},
	{Name: "/workflows", Description: "List CI/CD workflows"},
	{Name: "/trigger", Description: "Trigger a workflow run"},
	{Name: "/runs", Description: "List workflow runs"},
	{Name: "/run", Description: "Get workflow run details"},
	{Name: "/failing", Description: "Get PRs with failing CI"},
	{Name: "/heal", Description: "Auto-heal failing PR (analyze, fix, apply, rerun CI)"},
	{Name: "/logs", Description: "Get CI logs for a run"},
	{Name: "/analyze-failure", Description: "Analyze a CI failure"},
	{Name: "/context", Description: "Locate relevant code context"},
	{Name: "/patch", Description: "Generate a fix patch"},
	{Name: "/apply", Description: "Apply a fix to a pull request"},
	{Name: "/rerun", Description: "Re-run CI for a workflow"},
	{Name: "/chat", Description: "Chat with the AI agent (agentic reasoning)"},
	{Name: "/index", Description: "Index a repo into the RAG knowledge base"},
	{Name: "/reset", Description: "Clear agent conversation memory"},
}

// slashMap translates slash aliases into backend command names.
var slashMap = map[string]string{
	"/help":              "help",
	"/h":                 "help",
	"/?":                 "help",
	"/tools":             "tools",
	"/schema":            "schema",
	"/call":              "call",
	"/analyze":           "analyze_repo",
	"/analyzerepo":       "analyze_repo",
	"/repos":             "list_repos",
	"/listrepos":         "list_repos",
	"/prs":               "list_prs",
	"/listprs":           "list_prs",
	"/pr":                "get_pr",
	"/getpr":             "get_pr",
	"/issues":            "list_issues",
	"/listissues":        "list_issues",
	"/issue":             "get_issue",
	"/getissue":          "get_issue",
	"/newissue":          "create_issue",
	"/createissue":       "create_issue",
	"/commentissue":      "comment_issue",
	"/closeissue":        "close_issue",
	"/comment":           "comment_pr",
	"/commentpr":         "comment_pr",
	"/merge":             "merge_pr",
	"/mergepr":           "merge_pr",
	"/readme":            "get_readme",
	"/getreadme":         "get_readme",
	"/updatereadme":      "update_readme",
	"/workflows":         "list_workflows",
	"/listworkflows":     "list_workflows",
	"/trigger":           "trigger_workflow",
	"/triggerworkflow":   "trigger_workflow",
	"/runs":              "list_workflow_runs",
	"/listworkflowruns":  "list_workflow_runs",
	"/run":               "get_workflow_run",
	"/getworkflowrun":    "get_workflow_run",
	"/failing":           "get_failing_prs",
	"/getfailingprs":     "get_failing_prs",
	"/heal":              "heal_ci",
	"/healci":            "heal_ci",
	"/healfailingpr":     "heal_ci",
	"/logs":              "get_ci_logs",
	"/getcilogs":         "get_ci_logs",
	"/analyze-failure":   "analyze_ci_failure",
	"/analyzecifailure":  "analyze_ci_failure",
	"/context":           "locate_code_context",
	"/locatecodecontext": "locate_code_context",
	"/patch":             "generate_fix_patch",
	"/generatefixpatch":  "generate_fix_patch",
	"/apply":             "apply_fix_to_pr",
	"/applyfixtopr":      "apply_fix_to_pr",
	"/rerun":             "rerun_ci",
	"/rerunci":           "rerun_ci",
	"/chat":              "chat",
	"/ask":               "chat",
	"/index":             "index",
	"/reset":             "reset",
}

// Builtins returns a fresh copy of the built-in palette catalog.
func Builtins() []state.CommandEntry {
	out := make([]state.CommandEntry, len(builtins))
	copy(out, builtins)
	return out
}

// Merge appends extra entries whose names are not already present.
// Earlier entries win, so built-ins shadow backend tools of the same name.
func Merge(base []state.CommandEntry, extra []state.CommandEntry) []state.CommandEntry {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]state.CommandEntry, 0, len(base)+len(extra))
	for _, group := range [][]state.CommandEntry{base, extra} {
		for _, cmd := range group {
			if _, dup := seen[cmd.Name]; dup {
				continue
			}
			seen[cmd.Name] = struct{}{}
			out = append(out, cmd)
		}
	}
	return out
}

// Normalize maps a typed line onto a backend command.
//
// Plain text is returned trimmed. For a slash command the head is
// lower-cased and looked up in the alias table; unknown heads just lose the
// leading slash. The tail is re-attached after a single space.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") {
		return raw
	}

	head, tail := raw, ""
	if i := strings.IndexFunc(raw, unicode.IsSpace); i >= 0 {
		head, tail = raw[:i], strings.TrimSpace(raw[i:])
	}
	head = strings.ToLower(head)

	mapped, ok := slashMap[head]
	if !ok {
		mapped = strings.TrimLeft(head, "/")
	}
	return strings.TrimSpace(mapped + " " + tail)
}

// IsQuit reports whether a normalized command ends the session locally.
func IsQuit(command string) bool {
	return command == "quit" || command == "exit"
}

// ChatMessage strips a leading "chat " so "/chat hi" and "hi" send the same text.
func ChatMessage(command string) string {
	return strings.TrimSpace(strings.TrimPrefix(command, "chat "))
}
