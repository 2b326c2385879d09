package web

import (
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/labstack/echo/v4"

	"infrascan/internal/demo"
	"infrascan/internal/models"
)

// Templates renders the landing page and the demo panel fragment
type Templates struct {
	tmpl *template.Template
}

var templateFuncs = template.FuncMap{
	"formatSSIM":       formatSSIM,
	"formatDifference": formatDifference,
	"slotCaption":      slotCaption,
}

// NewTemplates parses the page and panel templates
func NewTemplates() (*Templates, error) {
	tmpl, err := template.New("page").Funcs(templateFuncs).Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	if _, err := tmpl.New("panel").Parse(panelTemplate); err != nil {
		return nil, fmt.Errorf("parse panel template: %w", err)
	}
	return &Templates{tmpl: tmpl}, nil
}

// Render implements echo.Renderer
func (t *Templates) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return t.tmpl.ExecuteTemplate(w, name, data)
}

// pageData is what both templates see
type pageData struct {
	Snapshot demo.Snapshot
	Error    string
	Year     int
}

func formatSSIM(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatDifference(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func slotCaption(slot models.Slot) string {
	switch slot {
	case models.SlotPast:
		return "Previous infrastructure layout before recent changes"
	case models.SlotCurrent:
		return "Updated urban layout highlighting recent developments"
	}
	return ""
}
