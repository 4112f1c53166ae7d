package domain

import "encoding/json"

// ColorLabel is the semantic name assigned to a pixel
type ColorLabel int

const (
	LabelUnknown ColorLabel = iota
	LabelRed
	LabelGreen
	LabelBlue
	LabelYellow
	LabelBlack
	LabelWhite
	LabelOutOfBounds
)

var labelNames = [...]string{
	LabelUnknown:     "Unknown",
	LabelRed:         "Red",
	LabelGreen:       "Green",
	LabelBlue:        "Blue",
	LabelYellow:      "Yellow",
	LabelBlack:       "Black",
	LabelWhite:       "White",
	LabelOutOfBounds: "Out of bounds",
}

func (l ColorLabel) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return labelNames[LabelUnknown]
	}
	return labelNames[l]
}

// MarshalJSON encodes the label by name
func (l ColorLabel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Classify names the color of a pixel. Rules are evaluated in order and
// the first match wins, so overlapping ranges resolve to the earlier rule.
func Classify(r, g, b uint8) ColorLabel {
	switch {
	case r > 120 && g < 100 && b < 100:
		return LabelRed
	case g > 100 && r < 150 && b < 150:
		return LabelGreen
	case b > 120 && r < 90 && g < 150:
		return LabelBlue
	case r > 200 && g > 130 && b < 100:
		return LabelYellow
	case r < 50 && g < 50 && b < 50:
		return LabelBlack
	case r > 170 && g > 170 && b > 170:
		return LabelWhite
	}
	return LabelUnknown
}

// ClassifyRGB is Classify for a sampled pixel
func ClassifyRGB(c RGB) ColorLabel {
	return Classify(c.R, c.G, c.B)
}
