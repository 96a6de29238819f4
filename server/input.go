package contour

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	Mc "github.com/maroda/contour/chart"
)

// ParseSeries reads numbers separated by commas, whitespace or newlines,
// the way a person types them into a form: "10000, 20000, 60000".
// Empty fields are skipped. Anything that is not a finite number fails.
func ParseSeries(s string) ([]float64, error) {
	return ParseSeriesReader(strings.NewReader(s))
}

// ParseSeriesReader is ParseSeries over a stream.
// Lines starting with # are comments.
func ParseSeriesReader(r io.Reader) ([]float64, error) {
	values := make([]float64, 0)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// ignore whitespace and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		for _, field := range fields {
			v, err := parseFinite("value", field)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Error("Problem scanning input", slog.Any("Error", err))
		return nil, fmt.Errorf("scanning error: %w", err)
	}

	return values, nil
}

// ParseAxisInt reads a positive slot count
func ParseAxisInt(field, s string) (int, error) {
	s = strings.TrimSpace(s)
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, Mc.NewInputError(field, s, Mc.ErrInvalidValue)
	}
	if i <= 0 {
		return 0, Mc.NewInputError(field, s, Mc.ErrInvalidAxisBounds)
	}
	return i, nil
}

// ParseAxisFloat reads a positive finite axis value
func ParseAxisFloat(field, s string) (float64, error) {
	v, err := parseFinite(field, s)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, Mc.NewInputError(field, strings.TrimSpace(s), Mc.ErrInvalidAxisBounds)
	}
	return v, nil
}

func parseFinite(field, s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, Mc.NewInputError(field, s, Mc.ErrInvalidValue)
	}
	return v, nil
}
