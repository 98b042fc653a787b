package models

// Regime is a coarse market condition classification.
type Regime string

const (
	RegimeBull     Regime = "BULL"
	RegimeBear     Regime = "BEAR"
	RegimeSideways Regime = "SIDEWAYS"
)

// Code maps a regime to the numeric feature value fed to the models.
func (r Regime) Code() float64 {
	switch r {
	case RegimeBull:
		return 1
	case RegimeBear:
		return -1
	default:
		return 0
	}
}
