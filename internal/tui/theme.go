package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette colors of the dark theme.
var (
	colorBG         = lipgloss.Color("#181C22")
	colorElevated   = lipgloss.Color("#161A1F")
	colorBorder     = lipgloss.Color("#2D343E")
	colorAccent     = lipgloss.Color("#6BBCFF")
	colorAccentSoft = lipgloss.Color("#99D4FF")
	colorAccentGlow = lipgloss.Color("#1E2D3D")
	colorText       = lipgloss.Color("#F2F4F8")
	colorTextDim    = lipgloss.Color("#BCC5D0")
	colorMuted      = lipgloss.Color("#949EAD")
	colorOrange     = lipgloss.Color("#FF9E3D")
	colorGreen      = lipgloss.Color("#7EE787")
	colorError      = lipgloss.Color("#F06C6C")
)

type styles struct {
	border      lipgloss.Style
	header      lipgloss.Style
	title       lipgloss.Style
	version     lipgloss.Style
	dim         lipgloss.Style
	muted       lipgloss.Style
	userLabel   lipgloss.Style
	agentLabel  lipgloss.Style
	body        lipgloss.Style
	system      lipgloss.Style
	input       lipgloss.Style
	prompt      lipgloss.Style
	cursor      lipgloss.Style
	placeholder lipgloss.Style
	paletteBox  lipgloss.Style
	paletteName lipgloss.Style
	paletteSel  lipgloss.Style
	status      lipgloss.Style
	connected   lipgloss.Style
	offline     lipgloss.Style
	branch      lipgloss.Style
	spinner     lipgloss.Style
	pillKey     lipgloss.Style
	pillDesc    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		border:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder),
		header:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).PaddingLeft(1).PaddingRight(1),
		title:       lipgloss.NewStyle().Foreground(colorOrange).Bold(true),
		version:     lipgloss.NewStyle().Foreground(colorTextDim),
		dim:         lipgloss.NewStyle().Foreground(colorTextDim),
		muted:       lipgloss.NewStyle().Foreground(colorMuted),
		userLabel:   lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		agentLabel:  lipgloss.NewStyle().Foreground(colorAccentSoft).Bold(true),
		body:        lipgloss.NewStyle().Foreground(colorText),
		system:      lipgloss.NewStyle().Foreground(colorTextDim),
		input:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder),
		prompt:      lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		cursor:      lipgloss.NewStyle().Reverse(true),
		placeholder: lipgloss.NewStyle().Foreground(colorMuted),
		paletteBox:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent),
		paletteName: lipgloss.NewStyle().Foreground(colorAccentSoft),
		paletteSel:  lipgloss.NewStyle().Background(colorAccentGlow).Foreground(colorText).Bold(true),
		status:      lipgloss.NewStyle().Background(colorElevated),
		connected:   lipgloss.NewStyle().Foreground(colorGreen),
		offline:     lipgloss.NewStyle().Foreground(colorError),
		branch:      lipgloss.NewStyle().Foreground(colorGreen).Bold(true),
		spinner:     lipgloss.NewStyle().Foreground(colorAccent),
		pillKey:     lipgloss.NewStyle().Foreground(colorBG).Background(colorMuted).Padding(0, 1),
		pillDesc:    lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1),
	}
}

// renderThinkingBar draws a color-cycling bar shown while a reply is pending.
func renderThinkingBar(width, frame int) string {
	if width < 1 {
		width = 1
	}
	var b strings.Builder
	baseHue := float64((frame * 5) % 360)
	for i := 0; i < width; i++ {
		hue := math.Mod(baseHue+float64(i*3), 360.0)
		phase := (float64(i)/float64(width))*2*math.Pi + float64(frame)/8.0
		light := 0.50 + 0.15*math.Sin(phase)
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(hslToHex(hue, 0.85, light))).Render("▔"))
	}
	return b.String()
}

// hslToHex converts H,S,L (H in [0,360), S/L in [0,1]) to a #RRGGBB string.
func hslToHex(h, s, l float64) string {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60.0
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := l - c/2
	return fmt.Sprintf("#%02X%02X%02X", channel(r+m), channel(g+m), channel(b+m))
}

func channel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(1, v)) * 255)
}
