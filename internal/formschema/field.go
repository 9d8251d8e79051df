package formschema

import (
	"encoding/json"
	"strings"
)

// FieldType is the closed set of input kinds a renderer must handle.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldEmail    FieldType = "email"
	FieldTel      FieldType = "tel"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldDate     FieldType = "date"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
)

var fieldTypes = map[FieldType]struct{}{
	FieldText:     {},
	FieldNumber:   {},
	FieldEmail:    {},
	FieldTel:      {},
	FieldTextarea: {},
	FieldSelect:   {},
	FieldDate:     {},
	FieldCheckbox: {},
	FieldRadio:    {},
}

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	_, ok := fieldTypes[t]
	return ok
}

// IsChoice reports whether the type requires a non-empty options list.
func (t FieldType) IsChoice() bool {
	return t == FieldSelect || t == FieldRadio
}

// IsNumeric reports whether min/max/step apply.
func (t FieldType) IsNumeric() bool {
	return t == FieldNumber
}

// ConditionalDisplay shows a field only while another field holds one of
// the listed values.
type ConditionalDisplay struct {
	DependsOn string   `json:"dependsOn"`
	ShowWhen  []string `json:"showWhen"`
}

// Field is a single input. RequiredAtStage distinguishes "unset" (nil, the
// plain Required flag applies) from "set" (only the listed stages gate it).
type Field struct {
	ID                 string              `json:"id"`
	FieldType          FieldType           `json:"fieldType"`
	Label              string              `json:"label"`
	Placeholder        string              `json:"placeholder,omitempty"`
	Required           bool                `json:"required"`
	RequiredAtStage    []Stage             `json:"requiredAtStage,omitempty"`
	ConditionalGroup   string              `json:"conditionalGroup,omitempty"`
	ConditionalDisplay *ConditionalDisplay `json:"conditionalDisplay,omitempty"`
	Options            []string            `json:"options,omitempty"`
	HelperText         string              `json:"helperText,omitempty"`
	Min                *float64            `json:"min,omitempty"`
	Max                *float64            `json:"max,omitempty"`
	Step               *float64            `json:"step,omitempty"`
}

// ValidationField has the Field shape but lives outside any section. It takes
// part in stage gating without being rendered in the primary form.
type ValidationField = Field

// MarshalJSON keeps an explicitly empty requiredAtStage in the output so
// that "never required" survives an export/import round trip.
func (f Field) MarshalJSON() ([]byte, error) {
	type plain Field
	out := struct {
		plain
		RequiredAtStage *[]Stage `json:"requiredAtStage,omitempty"`
	}{plain: plain(f)}
	if f.RequiredAtStage != nil {
		stages := f.RequiredAtStage
		out.RequiredAtStage = &stages
	}
	return json.Marshal(out)
}

// StageGated reports whether RequiredAtStage overrides the Required flag.
func (f Field) StageGated() bool {
	return f.RequiredAtStage != nil
}

// InGroup reports whether the field belongs to a conditional group.
func (f Field) InGroup() bool {
	return strings.TrimSpace(f.ConditionalGroup) != ""
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	out := f
	if f.RequiredAtStage != nil {
		out.RequiredAtStage = append(make([]Stage, 0, len(f.RequiredAtStage)), f.RequiredAtStage...)
	}
	if f.Options != nil {
		out.Options = append(make([]string, 0, len(f.Options)), f.Options...)
	}
	if f.ConditionalDisplay != nil {
		cd := *f.ConditionalDisplay
		if cd.ShowWhen != nil {
			cd.ShowWhen = append(make([]string, 0, len(cd.ShowWhen)), cd.ShowWhen...)
		}
		out.ConditionalDisplay = &cd
	}
	out.Min = cloneFloat(f.Min)
	out.Max = cloneFloat(f.Max)
	out.Step = cloneFloat(f.Step)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFields(in []Field) []Field {
	if in == nil {
		return nil
	}
	out := make([]Field, len(in))
	for i, f := range in {
		out[i] = f.Clone()
	}
	return out
}
