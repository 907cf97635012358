package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLabel(t *testing.T) {
	tests := []struct {
		label string
		want  LabelClass
	}{
		{"Heat", ClassHeat},
		{"heat", ClassHeat},
		{"Fire", ClassHeat},
		{"FIRE", ClassHeat},
		{"Sound", ClassSound},
		{"noise", ClassSound},
		{"Loud", ClassSound},
		{"Vibration", ClassVibration},
		{"VIBRATION", ClassVibration},
		{"Normal", ClassNormal},
		{"normal", ClassNormal},
		{"Smoke", ClassOther},
		{"", ClassOther},
		{"Heating", ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyLabel(tt.label))
		})
	}
}

func TestModelShapeStride(t *testing.T) {
	assert.Equal(t, 4, ModelShape{FrameSize: 40, SamplesPerFrame: 10}.Stride())
	assert.Equal(t, 0, ModelShape{FrameSize: 40, SamplesPerFrame: 0}.Stride())
}
