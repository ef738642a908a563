// Package report renders progress and summaries on the terminal and writes
// the optional run profile outputs.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/nytrix/nytest/hostinfo"
	"github.com/nytrix/nytest/model"
	"github.com/nytrix/nytest/phase"
	"github.com/nytrix/nytest/scheduler"
	"golang.org/x/term"
)

// RuleWidth is the width of section headers and the closing rule.
const RuleWidth = 54

const (
	shortLimit = 50
	shortHead  = 20
	shortTail  = 27
	slowestTop = 8
)

// Options configures a Reporter.
type Options struct {
	// Root is stripped from displayed paths
	Root string
	// ASCII replaces the check marks with OK, XX and --
	ASCII bool
	// Color forces colors on or off, nil detects a terminal
	Color *bool
	// GOOS selects the native phase label, defaults to runtime.GOOS
	GOOS string
}

type styles struct {
	gray   lipgloss.Style
	green  lipgloss.Style
	red    lipgloss.Style
	yellow lipgloss.Style
	cyan   lipgloss.Style
	bold   lipgloss.Style
}

// Reporter prints case lines as results land. It is not safe for
// concurrent use.
type Reporter struct {
	out         io.Writer
	root        string
	ascii       bool
	nativeLabel string
	st          styles
}

func New(out io.Writer, opts Options) *Reporter {
	r := lipgloss.NewRenderer(out)
	if colorEnabled(out, opts.Color) {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	return &Reporter{
		out:         out,
		root:        opts.Root,
		ascii:       opts.ASCII,
		nativeLabel: NativeLabel(goos),
		st: styles{
			gray:   r.NewStyle().Foreground(lipgloss.Color("8")),
			green:  r.NewStyle().Foreground(lipgloss.Color("2")),
			red:    r.NewStyle().Foreground(lipgloss.Color("1")),
			yellow: r.NewStyle().Foreground(lipgloss.Color("3")),
			cyan:   r.NewStyle().Foreground(lipgloss.Color("6")),
			bold:   r.NewStyle().Bold(true),
		},
	}
}

func colorEnabled(out io.Writer, force *bool) bool {
	if force != nil {
		return *force
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NativeLabel names the native artifact format of goos.
func NativeLabel(goos string) string {
	switch goos {
	case "windows":
		return "EXE"
	case "darwin":
		return "Mach-O"
	}
	return "ELF"
}

func (r *Reporter) println(s string) {
	fmt.Fprintln(r.out, s)
}

// Header prints a centered section rule.
func (r *Reporter) Header(name string) {
	label := "[ " + name + " ]"
	side := max(3, (RuleWidth-len(label)-2)/2)
	tail := max(3, RuleWidth-len(label)-2-side)
	r.println(r.st.gray.Render(strings.Repeat("-", side)) + " " +
		r.st.cyan.Render(label) + " " +
		r.st.gray.Render(strings.Repeat("-", tail)))
}

// Mode is the cache and driver configuration shown in the mode banner.
type Mode struct {
	Real        bool
	ResultCache bool
	NativeCache bool
	JITCache    bool
	AOTCache    bool
	StdCache    bool
	Executor    string
	ReplMode    string
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// ModeBanner prints the [mode] line.
func (r *Reporter) ModeBanner(m Mode) {
	mode := "default"
	if m.Real {
		mode = "real"
	}
	line := fmt.Sprintf("%s result_cache=%s native_cache=%s jit_cache=%s aot_cache=%s std_cache=%s",
		mode, onOff(m.ResultCache), onOff(m.NativeCache), onOff(m.JITCache), onOff(m.AOTCache), onOff(m.StdCache))
	if m.Executor != "" {
		line += " executor=" + m.Executor
	}
	if m.ReplMode != "" {
		line += " repl=" + m.ReplMode
	}
	r.println(r.st.gray.Render("[mode]") + " " + line)
}

// HostBanner prints the [host] line shown before the benchmark suite.
func (r *Reporter) HostBanner(t hostinfo.Topology, jobs, benchJobs int) {
	r.println(fmt.Sprintf("%s os=%s arch=%s cpu=%s cores=%s/%s ram=%s jobs=%s/%s",
		r.st.gray.Render("[host]"),
		r.st.cyan.Render(t.OSLabel()),
		r.st.cyan.Render(t.Arch),
		r.st.bold.Render(t.CPULabel()),
		r.st.yellow.Render(fmt.Sprint(t.Physical)),
		r.st.yellow.Render(fmt.Sprint(t.Logical)),
		t.MemLabel(),
		r.st.green.Render(fmt.Sprint(benchJobs)),
		r.st.green.Render(fmt.Sprint(jobs)),
	))
}

// Shorten trims a path for display: the project root and the common test
// directories are removed and long paths are elided in the middle.
func Shorten(root, path string) string {
	p := filepath.ToSlash(path)
	if root != "" {
		prefix := strings.TrimSuffix(filepath.ToSlash(root), "/") + "/"
		p = strings.TrimPrefix(p, prefix)
	}
	p = strings.ReplaceAll(p, "etc/tests/", "")
	p = strings.ReplaceAll(p, "test/", "")
	if len(p) > shortLimit {
		p = p[:shortHead] + "..." + p[len(p)-shortTail:]
	}
	return p
}

func (r *Reporter) mark(p *model.PhaseResult) string {
	ok, fail, skip := "✓", "✗", "·"
	if r.ascii {
		ok, fail, skip = "OK", "XX", "--"
	}
	switch {
	case p == nil || p.Skipped():
		return r.st.yellow.Render(skip)
	case p.Passed():
		return r.st.green.Render(ok)
	}
	return r.st.red.Render(fail)
}

// Case prints the progress line of res and, for failing phases, the
// captured output. label replaces the case path when not empty.
func (r *Reporter) Case(res model.CaseResult, completed, total int, label string) {
	if label == "" {
		label = res.Case.Path
	}
	marks := fmt.Sprintf("[%s/%s/%s]", r.mark(&res.Direct), r.mark(res.Interactive), r.mark(&res.Native))
	var status string
	if res.Cached {
		status = marks + " " + r.st.gray.Render("cache")
	} else {
		status = marks + " " + r.st.gray.Render(fmt.Sprintf("%4dms", res.Total().Milliseconds()))
	}
	pct := 100
	if total > 0 {
		pct = completed * 100 / total
	}
	r.println(fmt.Sprintf("%s %s %s", r.st.gray.Render(fmt.Sprintf("%3d%%", pct)), status, Shorten(r.root, label)))

	if res.Cached {
		return
	}
	r.failure("JIT", res.Direct, label)
	if res.Interactive != nil {
		r.failure("REPL", *res.Interactive, label)
	}
	r.failure(r.nativeLabel, res.Native, label)
}

func (r *Reporter) failure(name string, p model.PhaseResult, label string) {
	if p.Passed() {
		return
	}
	r.println(fmt.Sprintf("%s (code %d) %s: %s", r.st.red.Render(name+" FAIL"), p.ExitCode, filepath.ToSlash(label), p.Output))
}

// Wait prints a heartbeat line.
func (r *Reporter) Wait(w scheduler.Wait) {
	w.Oldest = Shorten(r.root, w.Oldest)
	r.println(r.st.gray.Render(w.String()))
}

// Warn prints a highlighted notice.
func (r *Reporter) Warn(format string, args ...any) {
	r.println(r.st.yellow.Render(fmt.Sprintf(format, args...)))
}

// Smoke prints the steps of a smoke session.
func (r *Reporter) Smoke(res phase.SmokeResult, err error) {
	if res.Skipped {
		r.Warn("Skipping REPL smoke test: %s", res.Reason)
		return
	}
	for _, step := range res.Steps {
		r.println(r.st.cyan.Render("ny>") + " " + step.Input)
		for _, l := range step.Payload {
			r.println("  " + r.st.gray.Render("->") + " " + l)
		}
	}
	if err != nil {
		r.println(r.st.red.Render("REPL smoke FAIL") + " " + err.Error())
	}
}

// Summary prints the timing table, the slowest cases and the final line.
func (r *Reporter) Summary(s *Summary, now time.Time) {
	rows := s.Rows()
	if len(rows) > 0 {
		r.Header("Timing Summary")
		r.println(r.st.gray.Render(fmt.Sprintf("%-10s %5s %5s %8s %7s %8s", "Suite", "Tests", "Pass", "Total", "Avg", "Max")))
		for _, row := range rows {
			sum := row.Sum.Milliseconds()
			avg := (row.Sum / time.Duration(max(1, row.Tests))).Round(time.Millisecond).Milliseconds()
			r.println(fmt.Sprintf("%-10s %5d %5d %7dms %6dms %7dms",
				SuiteLabel(row.Suite), row.Tests, row.Passed, sum, avg, row.Max.Milliseconds()))
		}
		if slow := s.Slowest(slowestTop); len(slow) > 0 {
			r.println(r.st.gray.Render("Top slow tests:"))
			for i, t := range slow {
				r.println(fmt.Sprintf("  %d. %6dms  %s [%s]",
					i+1, t.Duration.Round(time.Millisecond).Milliseconds(), Shorten(r.root, t.Path), SuiteLabel(t.Suite)))
			}
		}
	}

	passed := fmt.Sprintf("%d passed", s.Passed)
	if s.OK() {
		passed = r.st.green.Render(passed)
	} else {
		passed = r.st.red.Render(passed)
	}
	r.println(r.st.gray.Render(strings.Repeat("-", RuleWidth)))
	r.println(fmt.Sprintf("Total: %d | %s | %d failed in %dms", s.Total, passed, s.Failed(), now.Sub(s.Start).Milliseconds()))
}
