package fit

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
)

// CirclePoints samples n points on the circle (cx, cy, r) with Gaussian
// noise of the given standard deviation added to each coordinate. The seed
// makes the sample reproducible.
func CirclePoints(n int, cx, cy, r, noise float64, seed int64) []Point {
	rng := rand.New(rand.NewSource(seed))
	points := make([]Point, n)
	for i := range points {
		theta := 2 * math.Pi * float64(i) / float64(n)
		points[i] = Point{
			X: cx + r*math.Cos(theta) + noise*rng.NormFloat64(),
			Y: cy + r*math.Sin(theta) + noise*rng.NormFloat64(),
		}
	}
	return points
}

// ReadCSV loads points from a two-column CSV file. A first row that fails to
// parse as numbers is treated as a header and skipped.
func ReadCSV(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	points := make([]Point, 0, len(records))
	for i, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("row %d: expected 2 columns, got %d", i+1, len(rec))
		}
		x, errX := strconv.ParseFloat(rec[0], 64)
		y, errY := strconv.ParseFloat(rec[1], 64)
		if errX != nil || errY != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("row %d: invalid number", i+1)
		}
		points = append(points, Point{X: x, Y: y})
	}
	return points, nil
}

// WriteCSV saves points to a two-column CSV file with an x,y header.
func WriteCSV(path string, points []Point) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create data file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"x", "y"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range points {
		rec := []string{
			strconv.FormatFloat(p.X, 'g', -1, 64),
			strconv.FormatFloat(p.Y, 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write point: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
