package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/buckleypaul/boardswitch/internal/board"
	"github.com/buckleypaul/boardswitch/internal/pipeline"
	"github.com/buckleypaul/boardswitch/internal/serial"
	"github.com/buckleypaul/boardswitch/internal/verify"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 72

// TailLines is how much failed tool output is echoed back.
const TailLines = 20

// Banner renders the startup line.
func Banner(toolVersion string) string {
	return TitleStyle.Render("boardswitch") + DimStyle.Render(" · "+toolVersion)
}

// PinTable renders pins as an aligned two-column table in table order.
func PinTable(pins []board.Pin) string {
	roleWidth := 0
	for _, p := range pins {
		if w := lipgloss.Width(p.Role); w > roleWidth {
			roleWidth = w
		}
	}
	role := lipgloss.NewStyle().Width(roleWidth + 2)

	var b strings.Builder
	for i, p := range pins {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(role.Render(p.Role))
		b.WriteString(AccentStyle.Render(fmt.Sprintf("GPIO%d", p.Number)))
	}
	return b.String()
}

// ProfileCard renders a profile's environment, description and pins.
func ProfileCard(p board.Profile, width int) string {
	inner := width - 4
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", DimStyle.Render("key:"), p.Key)
	fmt.Fprintf(&b, "%s %s\n", DimStyle.Render("env:"), CodeStyle.Render(p.Environment))
	if p.Description != "" {
		b.WriteString(DimStyle.Render(wordwrap.String(p.Description, inner)))
		b.WriteString("\n")
	}
	if len(p.Pins) > 0 {
		b.WriteString("\n")
		b.WriteString(PinTable(p.Pins))
	}
	return Panel(p.Name, strings.TrimRight(b.String(), "\n"), width)
}

// ProfileList renders one line per profile, marking current.
func ProfileList(profiles []board.Profile, current string) string {
	keyWidth := 0
	for _, p := range profiles {
		if w := lipgloss.Width(p.Key); w > keyWidth {
			keyWidth = w
		}
	}
	key := lipgloss.NewStyle().Width(keyWidth + 2).Bold(true)

	var b strings.Builder
	b.WriteString(Title("Supported boards"))
	for _, p := range profiles {
		marker := "  "
		if p.Key == current {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Fprintf(&b, "\n%s%s%s %s", marker, key.Render(p.Key), p.Name, DimStyle.Render("("+p.Environment+")"))
	}
	return b.String()
}

// Outcome renders a finished pipeline run.
func Outcome(out *pipeline.Outcome, width int) string {
	var b strings.Builder
	b.WriteString(OK(fmt.Sprintf("Switched to %s", BoldStyle.Render(out.Profile.Name))))
	b.WriteString("\n")
	b.WriteString(ProfileCard(out.Profile, width))
	b.WriteString("\n")

	for _, pr := range out.Phases {
		b.WriteString(PhaseLine(pr))
		b.WriteString("\n")
	}
	for _, w := range out.Warnings {
		b.WriteString(Warn(w))
		b.WriteString("\n")
	}

	if len(out.FollowUp) > 0 {
		b.WriteString("\n")
		b.WriteString(BoldStyle.Render("Commands for this board:"))
		for _, c := range out.FollowUp {
			b.WriteString("\n  ")
			b.WriteString(CodeStyle.Render(c))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// PhaseLine renders one executed phase.
func PhaseLine(pr pipeline.PhaseResult) string {
	if pr.Phase == pipeline.PhaseMonitor {
		if pr.Result.Err != nil {
			return Fail(fmt.Sprintf("monitor: %v", pr.Result.Err))
		}
		return Info("monitor " + pr.Monitor.String())
	}
	if !pr.Result.Succeeded() {
		return Fail(fmt.Sprintf("%s: %v", pr.Phase, pr.Result.Failure()))
	}
	return OK(fmt.Sprintf("%s %s", pr.Phase, DimStyle.Render("("+pr.Result.Duration.Round(100*time.Millisecond).String()+")")))
}

// PhaseFailure renders a failed phase with the tail of its output.
func PhaseFailure(pe *pipeline.PhaseError, width int) string {
	s := Fail(pe.Error())
	if tail := Tail(pe.Result.Output(), TailLines, width-4); tail != "" {
		s += "\n" + DimStyle.Render(indent.String(tail, 4))
	}
	return s
}

// Tail returns the last n lines of output, ignoring trailing blank lines.
// Lines are truncated to width when width > 1.
func Tail(output string, n, width int) string {
	output = strings.TrimRight(output, "\n ")
	if output == "" {
		return ""
	}
	lines := strings.Split(output, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	if width > 1 {
		for i, l := range lines {
			lines[i] = truncate.StringWithTail(l, uint(width), "…")
		}
	}
	return strings.Join(lines, "\n")
}

// VerifyReport renders a verification run.
func VerifyReport(r *verify.Report, width int) string {
	var b strings.Builder
	b.WriteString(Title("Firmware v3 verification"))
	b.WriteString("\n")

	for _, s := range r.Artifacts {
		line := fmt.Sprintf("%s %s", s.Path, DimStyle.Render("("+s.Description+")"))
		if s.Present {
			b.WriteString(OK(line))
		} else {
			b.WriteString(Fail(line))
		}
		b.WriteString("\n")
	}

	if r.Compile != nil {
		b.WriteString("\n")
		if r.Compile.Succeeded() {
			b.WriteString(OK("compile " + CodeStyle.Render(r.Env)))
		} else {
			b.WriteString(Fail(fmt.Sprintf("compile %s: %v", r.Env, r.Compile.Failure())))
			if tail := Tail(r.Compile.Output(), TailLines, width-4); tail != "" {
				b.WriteString("\n")
				b.WriteString(DimStyle.Render(indent.String(tail, 4)))
			}
		}
		b.WriteString("\n")
	}
	if len(r.MemoryLines) > 0 {
		b.WriteString(BoldStyle.Render("Memory usage:"))
		for _, l := range r.MemoryLines {
			b.WriteString("\n  ")
			b.WriteString(l)
		}
		b.WriteString("\n")
	}
	if r.FeatureFlag {
		b.WriteString(OK("feature flag present"))
		b.WriteString("\n")
	}
	for _, w := range r.Warnings {
		b.WriteString(Warn(wordwrap.String(w, width-2)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if r.Passed {
		b.WriteString(SuccessBadge("PASS"))
		if len(r.Warnings) > 0 {
			b.WriteString(" " + WarningBadge(fmt.Sprintf("%d warnings", len(r.Warnings))))
		}
	} else {
		b.WriteString(ErrorBadge("FAIL"))
		if r.Err != nil {
			b.WriteString(" " + r.Err.Error())
		}
	}
	return b.String()
}

// Ports renders the serial port list. configured, when set, is marked or
// reported missing.
func Ports(ports []serial.PortInfo, configured string, width int) string {
	var b strings.Builder
	b.WriteString(Title("Serial ports"))
	if len(ports) == 0 {
		b.WriteString("\n")
		b.WriteString(DimStyle.Render("  no serial ports found"))
	}
	for _, p := range ports {
		marker := "  "
		if p.Name == configured {
			marker = SuccessStyle.Render("* ")
		}
		var detail []string
		if bridge := p.Bridge(); bridge != "" {
			detail = append(detail, bridge)
		}
		if p.IsUSB {
			detail = append(detail, fmt.Sprintf("%s:%s", p.VID, p.PID))
		}
		if p.Product != "" {
			detail = append(detail, p.Product)
		}
		line := marker + BoldStyle.Render(p.Name)
		if len(detail) > 0 {
			line += " " + DimStyle.Render(strings.Join(detail, ", "))
		}
		b.WriteString("\n")
		b.WriteString(truncate.StringWithTail(line, uint(width), "…"))
	}
	if configured != "" {
		if _, ok := serial.Find(ports, configured); !ok {
			b.WriteString("\n")
			b.WriteString(Warn(fmt.Sprintf("configured port %s is not connected", configured)))
		}
	}
	return b.String()
}
