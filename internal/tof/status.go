package tof

// CalibrationStatus classifies a finished calibration run. Anything other
// than CalOk is a warning, not an error: the result is still computed,
// still stored, and the caller decides whether the degraded calibration is
// acceptable for the deployment.
type CalibrationStatus uint8

const (
	CalOk CalibrationStatus = iota
	// Fewer than the minimum usable reference SPADs were found.
	CalInsufficientSpads
	// Reference rate above the band maximum at the end of the search;
	// offset stability may be degraded.
	CalRateTooHigh
	// Reference rate below the band minimum at the end of the search;
	// offset stability may be degraded.
	CalRateTooLow
	// Effective MM1 SPAD count too low during offset calibration.
	CalInsufficientMM1Spads
	// Pre-range rate too high in the pile-up region during offset
	// calibration.
	CalPreRangeRateTooHigh
)

func (s CalibrationStatus) String() string {
	switch s {
	case CalOk:
		return "ok"
	case CalInsufficientSpads:
		return "insufficient ref spads"
	case CalRateTooHigh:
		return "ref rate too high"
	case CalRateTooLow:
		return "ref rate too low"
	case CalInsufficientMM1Spads:
		return "insufficient mm1 spads"
	case CalPreRangeRateTooHigh:
		return "pre-range rate too high"
	default:
		return "unknown status"
	}
}
