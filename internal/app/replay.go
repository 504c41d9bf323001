package app

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/inertial_initializer/internal/config"
	"github.com/relabs-tech/inertial_initializer/internal/initializer"
)

// RunReplay feeds a recorded IMU log through the initializer and prints the
// first initial state it produces. The log is CSV with one sample per line:
//
//	timestamp,gx,gy,gz,ax,ay,az
//
// in seconds, rad/s and m/s². Lines starting with '#' are skipped. This is
// the bench path: validate a recording (or a tuning change) without any
// hardware or broker.
func RunReplay(inputPath string) error {
	cfg := config.Get()
	gravity := r3.Vec{X: cfg.GravityX, Y: cfg.GravityY, Z: cfg.GravityZ}

	ini, err := initializer.New(gravity, cfg.InitWindowLength, cfg.InitExciteThreshold)
	if err != nil {
		return fmt.Errorf("initializer setup: %w", err)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open sample log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = 7

	log.Printf("replay: feeding %s (window %.2fs, threshold %.4g)",
		inputPath, cfg.InitWindowLength, cfg.InitExciteThreshold)

	line := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read sample log: %w", err)
		}
		line++

		var fields [7]float64
		for i, v := range record {
			fields[i], err = strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("sample %d: bad field %q: %w", line, v, err)
			}
		}

		ini.Feed(fields[0],
			r3.Vec{X: fields[1], Y: fields[2], Z: fields[3]},
			r3.Vec{X: fields[4], Y: fields[5], Z: fields[6]})

		state, err := ini.Initialize()
		switch {
		case errors.Is(err, initializer.ErrWindowTooShort),
			errors.Is(err, initializer.ErrExcessiveMotion):
			continue
		case err != nil:
			return err
		}

		log.Printf("replay: initialized after %d samples at t=%.3f", line, state.Timestamp)
		payload, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	st := ini.Status()
	return fmt.Errorf("replay: no still window in %d samples (last: %s, span %.2fs, excitation %.4g)",
		line, st.Classification, st.Span, st.Excitation)
}
