// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


// ./cmd/calibration/main.go
//
// Guided factory calibration for VL53L1X class time-of-flight sensors in
// this project. Calibrates:
//  1. Dark survey: VCSEL-off rate map of the reference array to judge ambient
//     light and intrinsic SPAD noise before committing to a characterization
//  2. Reference SPADs: band search across aperture classes to pick the group
//     the device ranges against
//  3. Offsets: MM1/MM2 range offsets against a low-reflectance target at a
//     known distance
//
// Output:
//
//	Writes a JSON file in the working directory including calibration
//	date/time and quality/confidence.
//
// Run:
//
//	go run ./cmd/calibration
//
// Notes / assumptions:
//   - Talks to the sensor via internal/sensors TOFManager over I2C (or the
//     built-in simulator with -sim).
//   - The cover glass that ships with the unit must be attached for both
//     calibration steps; re-running after a glass change is expected.
//   - The offset target should be grey, ~5% reflectance, flat against the
//     optical axis at the configured distance.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/relabs-tech/tof_computer/internal/caldata"
	"github.com/relabs-tech/tof_computer/internal/config"
	"github.com/relabs-tech/tof_computer/internal/sensors"
	"github.com/relabs-tech/tof_computer/internal/tof"
)

const (
	// Dark survey quality heuristics (Mcps per SPAD)
	darkMedianGood = 0.05
	darkMedianBad  = 0.50

	// Ref SPAD band positioning: confidence peaks when the winning rate sits
	// mid-band rather than hugging an edge
	bandEdgeMargin = 0.10

	// Offset agreement: MM1 and MM2 offsets this far apart suggest a tilted
	// or non-uniform target
	offsetAgreeGoodMM = 3.0
	offsetAgreeBadMM  = 15.0

	// Confidence floor (we never want hard zero unless we error out)
	confFloor = 0.05
)

// ---------- Data model (JSON output) ----------

type RateStats struct {
	Samples    int     `json:"samples"`
	MinMcps    float64 `json:"min_mcps"`
	MaxMcps    float64 `json:"max_mcps"`
	MeanMcps   float64 `json:"mean_mcps"`
	MedianMcps float64 `json:"median_mcps"`
	StdDevMcps float64 `json:"stddev_mcps"`
}

type CalibrationRecord struct {
	SchemaVersion int    `json:"schema_version"`
	CalibrationAt string `json:"calibration_at"` // RFC3339
	Simulated     bool   `json:"simulated"`

	// Dark survey of the reference array, VCSEL off
	DarkStats RateStats `json:"dark_stats"`

	// Reference SPAD characterization
	RefSpad       caldata.ReferenceSpadConfig `json:"ref_spad"`
	RefSpadStatus string                      `json:"ref_spad_status"`
	LitStats      RateStats                   `json:"lit_stats"`

	// Offset calibration
	Offset        caldata.OffsetCalibrationResult `json:"offset"`
	CalDistanceMM int16                           `json:"cal_distance_mm"`

	// Confidence components and overall
	Confidence struct {
		Dark    float64 `json:"dark_survey"`
		RefSpad float64 `json:"ref_spad"`
		Offset  float64 `json:"offset"`
		Overall float64 `json:"overall"`
	} `json:"confidence"`

	Notes []string `json:"notes,omitempty"`
}

// ---------- Main ----------

func main() {
	in := bufio.NewReader(os.Stdin)

	// Parse command-line flags
	configPath := flag.String("config", "tof_config.txt", "Path to configuration file")
	simulated := flag.Bool("sim", false, "Use the simulated sensor instead of hardware")
	flag.Parse()

	fmt.Println("=== Guided ToF Calibration (Ref SPADs + Offsets) ===")
	fmt.Println("This workflow will prompt you in the console and store results in a JSON file.")
	fmt.Println()

	// Initialize configuration
	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg := config.Get()

	// Init sensor
	mgr := sensors.GetTOFManager()
	if err := mgr.Init(*simulated); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: ToF init failed: %v\n", err)
		os.Exit(1)
	}
	session, err := mgr.Session()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	if *simulated {
		fmt.Println("Using simulated sensor.")
	} else {
		fmt.Printf("Sensor found on %s at 0x%02X.\n", cfg.TOFI2CBus, cfg.TOFI2CAddr)
	}

	res := CalibrationRecord{
		SchemaVersion: 1,
		CalibrationAt: time.Now().Format(time.RFC3339),
		Simulated:     *simulated,
	}

	charParams := mgr.CharacterizeParams()
	sscTimeout := charParams.SSCTimeoutUs

	// ---------------- Dark survey ----------------
	fmt.Println("Step 1/3 — Dark survey")
	fmt.Println("Attach the cover glass and shield the sensor from direct light.")
	waitEnter(in, "Press ENTER to start the dark survey...")

	darkMap, err := session.RunSpadRateMap(tof.TestModeLCRVcselOff, tof.ArrayRef, sscTimeout)
	if err != nil {
		fatal(err)
	}
	res.DarkStats = rateStats(darkMap)
	res.Confidence.Dark = darkConfidence(res.DarkStats.MedianMcps)

	fmt.Printf("Dark rates (Mcps): median=%.4f mean=%.4f max=%.4f | confidence=%.2f\n",
		res.DarkStats.MedianMcps, res.DarkStats.MeanMcps, res.DarkStats.MaxMcps, res.Confidence.Dark)
	if res.DarkStats.MedianMcps > darkMedianBad {
		fmt.Println("WARNING: dark rates are high. Check ambient light and glass cleanliness.")
		res.Notes = append(res.Notes, "high_dark_rates: check ambient light / glass")
	}

	// ---------------- Reference SPAD characterization ----------------
	fmt.Println("\nStep 2/3 — Reference SPAD characterization")
	fmt.Println("Keep the cover glass attached. No target is needed for this step.")
	waitEnter(in, "Press ENTER to start characterization...")

	litMap, err := session.RunSpadRateMap(tof.TestModeLCRVcselOn, tof.ArrayRef, sscTimeout)
	if err != nil {
		fatal(err)
	}
	res.LitStats = rateStats(litMap)

	refCfg, refStatus, err := session.RunRefSpadChar(charParams)
	if err != nil {
		fatal(err)
	}
	res.RefSpad = refCfg
	res.RefSpadStatus = refStatus.String()
	res.Confidence.RefSpad = refSpadConfidence(refCfg, refStatus, charParams, litMap)

	fmt.Printf("Reference SPADs: count=%d location=%s status=%s | confidence=%.2f\n",
		refCfg.NumRefSpads, refCfg.RefLocation, refStatus, res.Confidence.RefSpad)
	if refStatus != tof.CalOk {
		fmt.Printf("WARNING: characterization finished with status %q. The configuration was still applied.\n", refStatus)
		res.Notes = append(res.Notes, "ref_spad_warning: "+refStatus.String())
	}

	// ---------------- Offset calibration ----------------
	calDist := mgr.CalDistanceMM()

	fmt.Println("\nStep 3/3 — Offset calibration")
	fmt.Printf("Place a grey ~5%% reflectance target flat at exactly %d mm from the glass.\n", calDist)
	fmt.Println("Shield the setup from bright ambient light.")
	waitEnter(in, "Press ENTER to start offset calibration...")

	offsetRes, offsetStatus, err := session.RunOffsetCalibration(calDist, mgr.OffsetParams())
	if err != nil {
		fatal(err)
	}
	res.Offset = offsetRes
	res.CalDistanceMM = calDist
	res.Confidence.Offset = offsetConfidence(offsetRes, offsetStatus)

	fmt.Printf("Offsets: MM1=%+d mm MM2=%+d mm eff_spads=%.1f pre_range=%.2f Mcps status=%s | confidence=%.2f\n",
		offsetRes.MM1OffsetMM, offsetRes.MM2OffsetMM,
		offsetRes.EffectiveSpadCountMM1, offsetRes.PreRangeRateMcps,
		offsetStatus, res.Confidence.Offset)
	if offsetStatus != tof.CalOk {
		fmt.Printf("WARNING: offset calibration finished with status %q. The offsets were still applied.\n", offsetStatus)
		res.Notes = append(res.Notes, "offset_warning: "+offsetStatus.String())
	}

	// ---------------- Overall confidence + store ----------------
	res.Confidence.Overall = overallConfidence(res.Confidence.Dark, res.Confidence.RefSpad, res.Confidence.Offset)

	if err := writeResult(res); err != nil {
		fatal(err)
	}

	fmt.Println("\nCalibration complete.")
	fmt.Printf("Overall confidence: %.2f\n", res.Confidence.Overall)
}

// ---------- Rate statistics ----------

func rateStats(m caldata.SpadRateMap) RateStats {
	n := len(m)
	if n == 0 {
		return RateStats{}
	}
	rates := make([]float64, n)
	for i, s := range m {
		rates[i] = s.RateMcps
	}
	sort.Float64s(rates)

	var sum float64
	for _, r := range rates {
		sum += r
	}
	mean := sum / float64(n)

	var variance float64
	for _, r := range rates {
		d := r - mean
		variance += d * d
	}

	median := rates[n/2]
	if n%2 == 0 {
		median = (rates[n/2-1] + rates[n/2]) / 2
	}

	return RateStats{
		Samples:    n,
		MinMcps:    rates[0],
		MaxMcps:    rates[n-1],
		MeanMcps:   mean,
		MedianMcps: median,
		StdDevMcps: math.Sqrt(variance / float64(n)),
	}
}

// ---------- Confidence heuristics ----------

func darkConfidence(median float64) float64 {
	switch {
	case median <= darkMedianGood:
		return 1.0
	case median >= darkMedianBad:
		return confFloor
	default:
		// Linear interpolation between good and bad
		t := (median - darkMedianGood) / (darkMedianBad - darkMedianGood)
		return clamp01(1.0 - 0.95*t)
	}
}

func refSpadConfidence(cfg caldata.ReferenceSpadConfig, status tof.CalibrationStatus, p tof.CharacterizeParams, lit caldata.SpadRateMap) float64 {
	if status != tof.CalOk {
		return confFloor
	}

	// Count factor: more enabled SPADs above the minimum means the band was
	// easy to hit
	countFactor := clamp01(float64(cfg.NumRefSpads) / float64(2*p.MinSpadCount))

	// Band factor: total rate of the enabled SPADs should sit inside the
	// band, away from either edge
	var total float64
	enabled := cfg.EnabledSpads()
	rateByIndex := make(map[int]float64, len(lit))
	for _, s := range lit {
		rateByIndex[s.SpadIndex] = s.RateMcps
	}
	for _, idx := range enabled {
		total += rateByIndex[idx]
	}

	width := p.Band.MaxMcps - p.Band.MinMcps
	margin := bandEdgeMargin * width
	var bandFactor float64
	switch {
	case total < p.Band.MinMcps || total > p.Band.MaxMcps:
		bandFactor = 0.2
	case total < p.Band.MinMcps+margin || total > p.Band.MaxMcps-margin:
		bandFactor = 0.6
	default:
		bandFactor = 1.0
	}

	conf := 0.45*countFactor + 0.55*bandFactor
	return clamp01(maxf(conf, confFloor))
}

func offsetConfidence(res caldata.OffsetCalibrationResult, status tof.CalibrationStatus) float64 {
	if status != tof.CalOk {
		return confFloor
	}

	// Agreement factor: MM1 and MM2 see the same target through different
	// sequence steps, so their offsets should be close
	diff := math.Abs(float64(res.MM1OffsetMM) - float64(res.MM2OffsetMM))
	var agreeFactor float64
	switch {
	case diff <= offsetAgreeGoodMM:
		agreeFactor = 1.0
	case diff >= offsetAgreeBadMM:
		agreeFactor = 0.2
	default:
		t := (diff - offsetAgreeGoodMM) / (offsetAgreeBadMM - offsetAgreeGoodMM)
		agreeFactor = 1.0 - 0.8*clamp01(t)
	}

	// Signal factor: plenty of effective SPADs and a pre-range rate well
	// under the warning threshold
	spadFactor := clamp01(res.EffectiveSpadCountMM1 / 10.0)

	conf := 0.6*agreeFactor + 0.4*spadFactor
	return clamp01(maxf(conf, confFloor))
}

func overallConfidence(dark, refSpad, offset float64) float64 {
	// Weighted; ref SPADs are foundational, offsets matter for accuracy.
	wD, wR, wO := 0.20, 0.40, 0.40
	return clamp01(wD*dark + wR*refSpad + wO*offset)
}

// ---------- Output ----------

func writeResult(res CalibrationRecord) error {
	ts := time.Now().Format("2006-01-02T15-04-05Z07-00")
	name := fmt.Sprintf("tof_%s_calibration.json", ts)

	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nWrote: %s\n", name)
	return nil
}

// ---------- Console helpers ----------

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}

// ---------- Small math helpers ----------

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
