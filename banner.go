// Copyright 2025 The Routed Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routed

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/common-nighthawk/go-figure"
	"golang.org/x/term"
)

// colorWriter wraps w in a colorprofile.Writer that downsamples ANSI
// colors to the terminal's capabilities. In production all ANSI
// sequences are stripped.
func (a *App) colorWriter(w io.Writer) *colorprofile.Writer {
	cpw := colorprofile.NewWriter(w, os.Environ())
	if a.settings.environment == EnvironmentProduction {
		cpw.Profile = colorprofile.NoTTY
	}
	return cpw
}

// printBanner writes the startup banner to stdout. Called from the
// serve goroutine once the listener is bound.
func (a *App) printBanner(scheme string) {
	a.renderBanner(os.Stdout, a.Addr(), scheme)
}

// renderBanner writes the banner for the server at addr: ASCII-art
// service name, a Service section, a Features section, and in
// development the route table.
func (a *App) renderBanner(out io.Writer, addr, scheme string) {
	w := a.colorWriter(out)

	art := figure.NewFigure(a.settings.serviceName, "", false)
	asciiLines := art.Slicify()

	gradient := []string{"12", "14", "10", "11"} // blue, cyan, green, yellow
	if a.settings.environment != EnvironmentDevelopment {
		gradient = []string{"10", "11"}
	}

	var styledArt strings.Builder
	for _, line := range asciiLines {
		if strings.TrimSpace(line) == "" {
			styledArt.WriteString("\n")
			continue
		}
		for i, char := range line {
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(gradient[i%len(gradient)])).
				Bold(true)
			styledArt.WriteString(style.Render(string(char)))
		}
		styledArt.WriteString("\n")
	}

	categoryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Bold(true)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Width(14).
		PaddingLeft(2).
		Align(lipgloss.Left)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Bold(true)

	disabledStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	// ":8080" -> "0.0.0.0:8080"
	displayAddr := addr
	if strings.HasPrefix(addr, ":") {
		displayAddr = "0.0.0.0" + addr
	}
	displayAddr = scheme + "://" + displayAddr

	var output strings.Builder

	output.WriteString(categoryStyle.Render("Service") + "\n")
	output.WriteString(labelStyle.Render("Version:") + "  " + valueStyle.Foreground(lipgloss.Color("14")).Render(a.settings.version) + "\n")
	output.WriteString(labelStyle.Render("Environment:") + "  " + valueStyle.Foreground(lipgloss.Color("11")).Render(a.settings.environment) + "\n")
	output.WriteString(labelStyle.Render("Address:") + "  " + valueStyle.Foreground(lipgloss.Color("10")).Render(displayAddr) + "\n")

	output.WriteString("\n" + categoryStyle.Render("Features") + "\n")

	metricsLine := labelStyle.Render("Metrics:") + "  " + disabledStyle.Render("Disabled")
	if a.features.metricsPath != "" {
		metricsLine = labelStyle.Render("Metrics:") + "  " +
			valueStyle.Foreground(lipgloss.Color("13")).Render(displayAddr+a.features.metricsPath)
	}
	output.WriteString(metricsLine + "\n")

	rateLine := labelStyle.Render("Rate limit:") + "  " + disabledStyle.Render("Disabled")
	if a.features.rateLimit != "" {
		rateLine = labelStyle.Render("Rate limit:") + "  " +
			valueStyle.Foreground(lipgloss.Color("12")).Render(a.features.rateLimit)
	}
	output.WriteString(rateLine + "\n")

	sessionsLine := labelStyle.Render("Sessions:") + "  " + disabledStyle.Render("Disabled")
	if a.features.sessions != "" {
		sessionsLine = labelStyle.Render("Sessions:") + "  " +
			valueStyle.Foreground(lipgloss.Color("14")).Render(a.features.sessions)
	}
	output.WriteString(sessionsLine + "\n")

	fmt.Fprintln(w)
	fmt.Fprint(w, styledArt.String())
	fmt.Fprintln(w)
	fmt.Fprint(w, output.String())

	if a.settings.environment == EnvironmentDevelopment {
		if len(a.engine.Routes()) > 0 {
			fmt.Fprintln(w)
			a.renderRoutesTable(w, 80)
		}
	}

	fmt.Fprintln(w)
}

// renderRoutesTable renders the route table. width is the target table
// width (80 in the banner, 120 standalone); the actual width grows to
// fit the content and shrinks to the terminal.
func (a *App) renderRoutesTable(w io.Writer, width int) {
	routes := a.engine.Routes()
	if len(routes) == 0 {
		return
	}

	methodStyles := map[string]lipgloss.Style{
		http.MethodGet:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true), // green
		http.MethodPost:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true), // blue
		http.MethodPut:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true), // yellow
		http.MethodDelete:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),  // red
		http.MethodPatch:   lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true), // magenta
		http.MethodHead:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true), // cyan
		http.MethodOptions: lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Bold(true),  // gray
	}

	useColors := a.settings.environment == EnvironmentDevelopment

	// Measure on the raw values; styled strings carry escape codes.
	rows := make([][]string, 0, len(routes))
	maxMethodWidth := len("Method")
	maxPathWidth := len("Path")
	maxNameWidth := len("Name")

	for _, route := range routes {
		method := route.Method()
		if useColors {
			if style, ok := methodStyles[method]; ok {
				method = style.Render(method)
			}
		}

		name := route.Name()
		if name == "" {
			name = "-"
		}

		maxMethodWidth = max(maxMethodWidth, len(route.Method()))
		maxPathWidth = max(maxPathWidth, len(route.FullPattern()))
		maxNameWidth = max(maxNameWidth, max(len(route.Name()), 1))

		rows = append(rows, []string{method, route.FullPattern(), name})
	}

	// Borders (2) + separators (2) + per-column padding (6) + content.
	minWidth := 2 + 2 + 6 + maxMethodWidth + maxPathWidth + maxNameWidth

	terminalWidth := width
	if file, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(int(file.Fd())); err == nil && tw > 0 {
			terminalWidth = tw
		}
	}

	tableWidth := max(minWidth, width)
	if terminalWidth > 0 {
		tableWidth = min(tableWidth, terminalWidth)
	}
	tableWidth = max(60, tableWidth)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(func() lipgloss.Style {
			if useColors {
				return lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
			}
			return lipgloss.NewStyle()
		}()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			style := lipgloss.NewStyle().
				Align(lipgloss.Left).
				Padding(0, 1)
			if row == 0 && useColors {
				style = style.Bold(true).Foreground(lipgloss.Color("230"))
			}
			return style
		}).
		Headers("Method", "Path", "Name").
		Rows(rows...).
		Width(tableWidth)

	fmt.Fprintln(w, t.Render())
}

// PrintRoutes prints the registered routes to stdout as a table with
// color-coded methods. Colors are downsampled to the terminal's
// capabilities and disabled entirely in production or when stdout is
// not a TTY.
//
// Example output:
//
//	┌────────┬──────────────────┬──────────────┐
//	│ Method │ Path             │ Name         │
//	├────────┼──────────────────┼──────────────┤
//	│ GET    │ /users/:id       │ users.show   │
//	│ POST   │ /users           │ users.create │
//	└────────┴──────────────────┴──────────────┘
func (a *App) PrintRoutes() {
	if len(a.engine.Routes()) == 0 {
		fmt.Println("No routes registered")
		return
	}
	a.renderRoutesTable(a.colorWriter(os.Stdout), 120)
}
