package models

import "strings"

// ModelShape describes the input frame the external classifier expects.
// FrameSize is the flattened feature buffer length, SamplesPerFrame how many
// sensor samples one frame is built from. Both come from the model itself at
// load time.
type ModelShape struct {
	FrameSize       int      `json:"frame_size"`
	SamplesPerFrame int      `json:"samples_per_frame"`
	Labels          []string `json:"labels"`
}

// Stride returns the number of buffer slots reserved per sample.
func (s ModelShape) Stride() int {
	if s.SamplesPerFrame <= 0 {
		return 0
	}
	return s.FrameSize / s.SamplesPerFrame
}

// LabelClass is the closed alias enumeration the arbiter matches on. The
// classifier's label set is arbitrary runtime data; each label is normalized
// into a class exactly once at model load.
type LabelClass int

const (
	ClassOther LabelClass = iota
	ClassHeat
	ClassSound
	ClassVibration
	ClassNormal
)

// ClassifyLabel maps a raw model label onto its alias class. Matching is
// case-insensitive; unknown labels stay ClassOther and keep their text.
func ClassifyLabel(label string) LabelClass {
	switch strings.ToLower(label) {
	case "heat", "fire":
		return ClassHeat
	case "sound", "noise", "loud":
		return ClassSound
	case "vibration":
		return ClassVibration
	case "normal":
		return ClassNormal
	default:
		return ClassOther
	}
}

// LabelScore is one classifier output: the original label text, its
// normalized class and the confidence score in [0,1].
type LabelScore struct {
	Label string     `json:"label"`
	Class LabelClass `json:"-"`
	Score float64    `json:"score"`
}

// ClassificationResult is the full labeled score set for one cycle, ordered
// as the model declares its labels. Order matters: score comparisons are
// strict, so the first-seen label wins exact ties.
type ClassificationResult []LabelScore
