package geostream

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrBadHeader = errors.New("not a geostreams csv")

// ReadCSV reads back a file written by WriteCSV.
func ReadCSV(path string) ([]Observation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var observations []Observation
	err = Scan(file, func(obs Observation) error {
		observations = append(observations, obs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return observations, nil
}

// Scan calls fn for every row of a geostreams CSV read from r, stopping at the first error.
func Scan(r io.Reader, fn func(Observation) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)
	header, err := reader.Read()
	if err == io.EOF {
		return ErrBadHeader
	}
	if err != nil {
		return err
	}
	for i := range Header {
		if header[i] != Header[i] {
			return fmt.Errorf("%w: column %d is %q", ErrBadHeader, i, header[i])
		}
	}
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		obs, err := parseRecord(rec)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(obs); err != nil {
			return err
		}
	}
}

// TraitSummary counts the rows of one trait and how many of them carry no reading.
type TraitSummary struct {
	Rows    int
	Missing int
}

// Summarize reads a geostreams CSV and summarizes it per trait.
func Summarize(path string) (map[string]TraitSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	counts := make(map[string]TraitSummary)
	err = Scan(file, func(obs Observation) error {
		sum := counts[obs.Trait]
		sum.Rows++
		if v := obs.Payload[ValueKey]; v == "" || v == "nan" {
			sum.Missing++
		}
		counts[obs.Trait] = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return counts, nil
}
