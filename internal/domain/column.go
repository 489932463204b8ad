package domain

import (
	"slices"
	"strings"
	"time"
)

// ColumnColor names one of the palette colors a column header can use.
type ColumnColor string

// ColorSlate and related constants define the column palette.
const (
	ColorSlate  ColumnColor = "slate"
	ColorBlue   ColumnColor = "blue"
	ColorAmber  ColumnColor = "amber"
	ColorGreen  ColumnColor = "green"
	ColorRed    ColumnColor = "red"
	ColorPurple ColumnColor = "purple"
	ColorPink   ColumnColor = "pink"
	ColorCyan   ColumnColor = "cyan"
)

// ColumnColors lists the palette in display order.
var ColumnColors = []ColumnColor{ColorSlate, ColorBlue, ColorAmber, ColorGreen, ColorRed, ColorPurple, ColorPink, ColorCyan}

// Column is one lane of a board.
type Column struct {
	ID        string
	ProjectID string
	Name      string
	Color     ColumnColor
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewColumn validates input and builds a column.
func NewColumn(id, projectID, name string, color ColumnColor, order int, now time.Time) (Column, error) {
	id = strings.TrimSpace(id)
	projectID = strings.TrimSpace(projectID)
	name = strings.TrimSpace(name)
	if id == "" || projectID == "" {
		return Column{}, ErrInvalidID
	}
	if name == "" {
		return Column{}, ErrInvalidName
	}
	if order < 0 {
		return Column{}, ErrInvalidPosition
	}
	color, err := NormalizeColumnColor(color)
	if err != nil {
		return Column{}, err
	}

	return Column{
		ID:        id,
		ProjectID: projectID,
		Name:      name,
		Color:     color,
		Order:     order,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// NormalizeColumnColor lowercases a color and falls back to slate when empty.
func NormalizeColumnColor(color ColumnColor) (ColumnColor, error) {
	color = ColumnColor(strings.ToLower(strings.TrimSpace(string(color))))
	if color == "" {
		return ColorSlate, nil
	}
	if !slices.Contains(ColumnColors, color) {
		return "", ErrInvalidColor
	}
	return color, nil
}

// Rename renames the column.
func (c *Column) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	c.Name = name
	c.UpdatedAt = now.UTC()
	return nil
}

// SetOrder handles set order.
func (c *Column) SetOrder(order int, now time.Time) error {
	if order < 0 {
		return ErrInvalidPosition
	}
	c.Order = order
	c.UpdatedAt = now.UTC()
	return nil
}

// Recolor handles recolor.
func (c *Column) Recolor(color ColumnColor, now time.Time) error {
	normalized, err := NormalizeColumnColor(color)
	if err != nil {
		return err
	}
	c.Color = normalized
	c.UpdatedAt = now.UTC()
	return nil
}
