package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Category names one equipment collection.
type Category string

const (
	Subwoofers  Category = "subwoofers"
	Amplifiers  Category = "amplifiers"
	Batteries   Category = "batteries"
	Alternators Category = "alternators"
	HeadUnits   Category = "head_units"
	Processors  Category = "processors"
)

// Categories lists every collection in display order.
var Categories = []Category{Subwoofers, Amplifiers, Batteries, Alternators, HeadUnits, Processors}

// ParseCategory maps a form value to a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Title is the display label.
func (c Category) Title() string {
	switch c {
	case Subwoofers:
		return "Subwoofers"
	case Amplifiers:
		return "Amplifiers"
	case Batteries:
		return "Batteries"
	case Alternators:
		return "Alternators"
	case HeadUnits:
		return "Head Units"
	case Processors:
		return "Processors"
	}
	return string(c)
}

// Item is one catalog record. The set of implementations is closed; each
// category has its own typed record.
type Item interface {
	Category() Category
	Label() string
	Row() []string
	isItem()
}

// Base holds the fields every record carries.
type Base struct {
	Brand string  `json:"brand" validate:"required,max=100"`
	Model string  `json:"model" validate:"required,max=100"`
	Price float64 `json:"price_usd,omitempty" validate:"gte=0"`
	Notes string  `json:"notes,omitempty" validate:"max=2000"`
}

func (b Base) Label() string { return b.Brand + " " + b.Model }

func (Base) isItem() {}

type Subwoofer struct {
	Base
	SizeIn    float64 `json:"size_in" validate:"gt=0,lte=24"`
	RMSWatts  int     `json:"rms_w" validate:"gt=0"`
	Impedance string  `json:"impedance,omitempty"`
	FsHz      float64 `json:"fs_hz,omitempty" validate:"gte=0"`
	XmaxMM    float64 `json:"xmax_mm,omitempty" validate:"gte=0"`
}

func (Subwoofer) Category() Category { return Subwoofers }

func (s Subwoofer) Row() []string {
	return []string{s.Brand, s.Model, ftoa(s.SizeIn) + `"`, strconv.Itoa(s.RMSWatts) + "W", s.Impedance, ftoa(s.FsHz), ftoa(s.XmaxMM), price(s.Price)}
}

type Amplifier struct {
	Base
	RMSWatts     int     `json:"rms_w" validate:"gt=0"`
	Channels     int     `json:"channels" validate:"gte=1,lte=16"`
	MinImpedance float64 `json:"min_impedance_ohm,omitempty" validate:"gte=0"`
	Class        string  `json:"class,omitempty"`
}

func (Amplifier) Category() Category { return Amplifiers }

func (a Amplifier) Row() []string {
	return []string{a.Brand, a.Model, strconv.Itoa(a.RMSWatts) + "W", strconv.Itoa(a.Channels), ftoa(a.MinImpedance), a.Class, price(a.Price)}
}

type Battery struct {
	Base
	Chemistry  string  `json:"chemistry" validate:"required"`
	CapacityAh float64 `json:"capacity_ah" validate:"gt=0"`
	Voltage    float64 `json:"voltage,omitempty" validate:"gte=0"`
}

func (Battery) Category() Category { return Batteries }

func (b Battery) Row() []string {
	return []string{b.Brand, b.Model, b.Chemistry, ftoa(b.CapacityAh) + "Ah", ftoa(b.Voltage), price(b.Price)}
}

type Alternator struct {
	Base
	Amps    int    `json:"amps" validate:"gt=0"`
	Fitment string `json:"fitment,omitempty"`
	Voltage string `json:"voltage,omitempty"`
	Wiring  string `json:"wiring,omitempty"`
}

func (Alternator) Category() Category { return Alternators }

func (a Alternator) Row() []string {
	return []string{a.Brand, a.Model, strconv.Itoa(a.Amps) + "A", a.Fitment, a.Voltage, a.Wiring, price(a.Price)}
}

type HeadUnit struct {
	Base
	PreoutVolts float64 `json:"preout_v,omitempty" validate:"gte=0"`
	Preouts     int     `json:"preouts,omitempty" validate:"gte=0"`
	DSP         bool    `json:"dsp,omitempty"`
}

func (HeadUnit) Category() Category { return HeadUnits }

func (h HeadUnit) Row() []string {
	return []string{h.Brand, h.Model, ftoa(h.PreoutVolts) + "V", strconv.Itoa(h.Preouts), strconv.FormatBool(h.DSP), price(h.Price)}
}

type Processor struct {
	Base
	Channels int      `json:"channels" validate:"gte=1,lte=32"`
	Features []string `json:"features,omitempty"`
}

func (Processor) Category() Category { return Processors }

func (p Processor) Row() []string {
	return []string{p.Brand, p.Model, strconv.Itoa(p.Channels), strings.Join(p.Features, ", "), price(p.Price)}
}

// Columns returns the table header matching Row for the category.
func Columns(c Category) []string {
	switch c {
	case Subwoofers:
		return []string{"Brand", "Model", "Size", "RMS", "Impedance", "Fs (Hz)", "Xmax (mm)", "Price"}
	case Amplifiers:
		return []string{"Brand", "Model", "RMS", "Channels", "Min Ω", "Class", "Price"}
	case Batteries:
		return []string{"Brand", "Model", "Chemistry", "Capacity", "Voltage", "Price"}
	case Alternators:
		return []string{"Brand", "Model", "Output", "Fitment", "Voltage", "Wiring", "Price"}
	case HeadUnits:
		return []string{"Brand", "Model", "Pre-out", "Pre-outs", "DSP", "Price"}
	case Processors:
		return []string{"Brand", "Model", "Channels", "Features", "Price"}
	}
	return nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func price(p float64) string {
	if p == 0 {
		return ""
	}
	return "$" + strconv.FormatFloat(p, 'f', 2, 64)
}
