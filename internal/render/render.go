// Package render draws layout rows as a multi-lane text graph, the style of
// git log --graph: one commit line with a dot and pass-through bars, followed
// by a connector line whenever a merge or fork bends between lanes.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AntonyCanut/gitlanes/internal/gitcore"
	"github.com/AntonyCanut/gitlanes/internal/graph"
)

// lanePalette cycles over the engine's color indices. Eight entries to match
// graph.DefaultPaletteSize.
var lanePalette = []lipgloss.Color{
	lipgloss.Color("36"),  // teal
	lipgloss.Color("167"), // soft red
	lipgloss.Color("35"),  // green
	lipgloss.Color("220"), // amber
	lipgloss.Color("75"),  // light blue
	lipgloss.Color("176"), // orchid
	lipgloss.Color("180"), // tan
	lipgloss.Color("245"), // gray
}

var (
	styleHash = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleRefs = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Renderer writes a commit graph to an io.Writer. With Color disabled the
// same glyphs are emitted without ANSI styling, for pipes and tests.
type Renderer struct {
	Out   io.Writer
	Color bool

	// Labels carries pre-formatted ref decoration (see RefLabel) per commit;
	// nil means undecorated output.
	Labels map[gitcore.Hash]string
}

const cellsPerLane = 2

// Write renders every row followed by a single-line summary of its commit.
func (r *Renderer) Write(rows []graph.Row) error {
	for _, row := range rows {
		if err := r.writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) writeRow(row graph.Row) error {
	commitLine := r.commitLine(row)
	summary := r.summary(row)

	if _, err := fmt.Fprintf(r.Out, "%s %s\n", commitLine, summary); err != nil {
		return err
	}

	if connector, ok := r.connectorLine(row); ok {
		if _, err := fmt.Fprintln(r.Out, connector); err != nil {
			return err
		}
	}
	return nil
}

// commitLine draws the dot plus a bar for every lane passing behind the node.
func (r *Renderer) commitLine(row graph.Row) string {
	cells := newCanvas(row.Width)
	for i, occupied := range row.Lanes {
		if occupied && i != row.DotLane {
			cells.put(i*cellsPerLane, '│', i)
		}
	}
	cells.put(row.DotLane*cellsPerLane, '●', row.DotColor)
	return cells.render(r.Color)
}

// connectorLine draws the lines between this row and the next. It is omitted
// when every connection is straight, keeping linear history compact.
func (r *Renderer) connectorLine(row graph.Row) (string, bool) {
	bends := false
	for _, c := range row.Connections {
		if c.FromLane != c.ToLane {
			bends = true
			break
		}
	}
	if !bends {
		return "", false
	}

	cells := newCanvas(row.Width)
	for _, c := range row.Connections {
		from, to := c.FromLane*cellsPerLane, c.ToLane*cellsPerLane
		switch {
		case c.ToLane == c.FromLane:
			cells.put(from, '│', c.Color)
		case c.ToLane > c.FromLane:
			cells.put(from, '╰', c.Color)
			for x := from + 1; x < to; x++ {
				cells.put(x, '─', c.Color)
			}
			cells.put(to, '╮', c.Color)
		default:
			cells.put(to, '╭', c.Color)
			for x := to + 1; x < from; x++ {
				cells.put(x, '─', c.Color)
			}
			cells.put(from, '╯', c.Color)
		}
	}
	return cells.render(r.Color), true
}

func (r *Renderer) summary(row graph.Row) string {
	c := row.Commit
	if c == nil {
		return ""
	}

	subject := c.Message
	if idx := strings.IndexByte(subject, '\n'); idx >= 0 {
		subject = subject[:idx]
	}

	hash := c.ID.Short()
	author := c.Author.Name
	if label := r.Labels[c.ID]; label != "" {
		subject = label + " " + subject
	}
	if !r.Color {
		return fmt.Sprintf("%s %s (%s)", hash, subject, author)
	}
	return fmt.Sprintf("%s %s %s",
		styleHash.Render(hash),
		subject,
		styleDim.Render("("+author+")"),
	)
}

// RefLabel formats branch/tag names for a decorated summary line.
func RefLabel(branches, tags []string, color bool) string {
	names := make([]string, 0, len(branches)+len(tags))
	names = append(names, branches...)
	for _, t := range tags {
		names = append(names, "tag: "+t)
	}
	if len(names) == 0 {
		return ""
	}
	label := "(" + strings.Join(names, ", ") + ")"
	if !color {
		return label
	}
	return styleRefs.Render(label)
}

// canvas is a row of glyph cells with a palette index per cell.
type canvas struct {
	runes  []rune
	colors []int
}

func newCanvas(lanes int) *canvas {
	width := lanes * cellsPerLane
	c := &canvas{
		runes:  make([]rune, width),
		colors: make([]int, width),
	}
	for i := range c.runes {
		c.runes[i] = ' '
	}
	return c
}

// put writes a glyph, merging crossings: a horizontal stroke over an existing
// vertical bar becomes '┼' rather than erasing it.
func (c *canvas) put(x int, glyph rune, color int) {
	if x < 0 || x >= len(c.runes) {
		return
	}
	if glyph == '─' && c.runes[x] == '│' {
		glyph = '┼'
	}
	if c.runes[x] == '●' {
		return // the dot always wins
	}
	c.runes[x] = glyph
	c.colors[x] = color
}

func (c *canvas) render(color bool) string {
	if !color {
		return string(c.runes)
	}

	var b strings.Builder
	for i, r := range c.runes {
		if r == ' ' {
			b.WriteRune(' ')
			continue
		}
		style := lipgloss.NewStyle().Foreground(lanePalette[c.colors[i]%len(lanePalette)])
		b.WriteString(style.Render(string(r)))
	}
	return b.String()
}
