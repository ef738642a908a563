package phase

// This file contains the interactive front-end smoke check.

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/creack/pty"
	"github.com/rs/zerolog"
)

var promptPattern = regexp.MustCompile(`ny(!)?\s*>`)

// promptCycles is how many prompts an interaction may consume before its
// expectation is checked. Some pseudo-terminals deliver the prompt and the
// result in separate chunks.
const promptCycles = 4

// Interaction is one line typed into the session and the pattern its
// output must match. A nil Expect only waits for the next prompt.
type Interaction struct {
	Input  string
	Expect *regexp.Regexp
}

// SmokeScript is the default interaction list.
var SmokeScript = []Interaction{
	{Input: "1 + 1", Expect: regexp.MustCompile(`2`)},
	{Input: "def x = 123"},
	{Input: "x * 2", Expect: regexp.MustCompile(`246`)},
	{Input: "str_len('hello')", Expect: regexp.MustCompile(`5`)},
	{Input: "x + 1", Expect: regexp.MustCompile(`124`)},
}

// SmokeStep is the observed output of one interaction.
type SmokeStep struct {
	Input   string
	Payload []string
}

// SmokeResult is the outcome of a smoke session.
type SmokeResult struct {
	Skipped bool
	Reason  string
	Steps   []SmokeStep
}

// smokeOverrides keep the session deterministic regardless of the policy
// variables set in a developer shell.
var smokeOverrides = [][2]string{
	{"ASAN_OPTIONS", "detect_leaks=0"},
	{"TERM", "xterm-256color"},
	{"NYTRIX_EFFECT_REQUIRE_KNOWN", "0"},
	{"NYTRIX_ALIAS_REQUIRE_KNOWN", "0"},
	{"NYTRIX_ALIAS_REQUIRE_NO_ESCAPE", "0"},
}

// SmokeEnv returns the environment of a smoke session built on base.
func SmokeEnv(base []string) []string {
	env := make([]string, 0, len(base)+len(smokeOverrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		overridden := false
		for _, o := range smokeOverrides {
			if o[0] == key {
				overridden = true
				break
			}
		}
		if !overridden {
			env = append(env, kv)
		}
	}
	for _, o := range smokeOverrides {
		env = append(env, o[0]+"="+o[1])
	}
	return env
}

// RunSmoke drives an interactive session of bin through script. Missing
// pseudo-terminal support yields a skipped result, not an error.
func RunSmoke(ctx context.Context, bin string, env []string, script []Interaction, timeout time.Duration, logger zerolog.Logger) (SmokeResult, error) {
	c := Command{
		Path: bin,
		Args: []string{"-i", "--no-effect-require-known", "--no-alias-require-known"},
		Env:  SmokeEnv(env),
	}
	s, err := StartSession(ctx, c, logger)
	if errors.Is(err, pty.ErrUnsupported) {
		return SmokeResult{Skipped: true, Reason: "pty is unavailable on this platform"}, nil
	}
	if err != nil {
		return SmokeResult{Skipped: true, Reason: err.Error()}, nil
	}
	defer s.Close()

	var res SmokeResult
	if _, err := s.Expect(promptPattern, timeout); err != nil {
		return res, err
	}
	for _, step := range script {
		logger.Debug().Str("input", step.Input).Msg("Smoke interaction")
		if err := s.Send(step.Input); err != nil {
			return res, err
		}
		var out string
		var payload []string
		for range promptCycles {
			chunk, err := s.Expect(promptPattern, timeout)
			out += chunk
			if err != nil {
				return res, err
			}
			payload = payloadLines(ansi.Strip(out), step.Input)
			if step.Expect == nil || step.Expect.MatchString(strings.Join(payload, "\n")) {
				break
			}
		}
		if step.Expect != nil && !step.Expect.MatchString(strings.Join(payload, "\n")) {
			return res, fmt.Errorf("smoke expectation failed for %q: /%s/", step.Input, step.Expect)
		}
		res.Steps = append(res.Steps, SmokeStep{Input: step.Input, Payload: payload})
	}
	return res, nil
}

// payloadLines drops prompts, blank lines and the echoed input.
func payloadLines(plain, input string) []string {
	var out []string
	for _, l := range strings.Split(plain, "\n") {
		s := strings.TrimSpace(l)
		if s == "" || s == input || strings.HasPrefix(s, "ny>") || strings.HasPrefix(s, "ny!>") {
			continue
		}
		out = append(out, s)
	}
	return out
}
