// Package csvimport reads vehicles and jobs from CSV files with a header row.
//
// Vehicle columns: id, name, lat, lon, capacity.
// Job columns: id, name, lat, lon, demand, kind, account.
// Only id is required; latitude/longitude and lng are accepted as aliases.
package csvimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"routeplanner/internal/integrations"
	"routeplanner/internal/model"
)

type Adapter struct {
	VehiclesPath string
	JobsPath     string
	// DefaultAccount is used for job rows without an account column value.
	DefaultAccount string
}

func (a Adapter) Name() string { return "csv" }

func (a Adapter) Vehicles(ctx context.Context) ([]model.VehicleIn, error) {
	if a.VehiclesPath == "" {
		return nil, nil
	}
	f, err := os.Open(a.VehiclesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadVehicles(f)
}

func (a Adapter) Jobs(ctx context.Context) ([]integrations.AccountJobs, error) {
	if a.JobsPath == "" {
		return nil, nil
	}
	f, err := os.Open(a.JobsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJobs(f, a.DefaultAccount)
}

var aliases = map[string]string{
	"latitude":    "lat",
	"longitude":   "lon",
	"lng":         "lon",
	"accountname": "account",
}

type table struct {
	r    *csv.Reader
	cols map[string]int
	line int
}

func newTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv: missing header row")
		}
		return nil, err
	}
	cols := map[string]int{}
	for i, h := range header {
		k := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if a, ok := aliases[k]; ok {
			k = a
		}
		cols[k] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, errors.New("csv: header must contain an id column")
	}
	return &table{r: cr, cols: cols, line: 1}, nil
}

// next returns the following record, or io.EOF.
func (t *table) next() ([]string, error) {
	rec, err := t.r.Read()
	t.line++
	return rec, err
}

func (t *table) get(rec []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *table) location(rec []string) (*model.GeoPoint, error) {
	lat, lon := t.get(rec, "lat"), t.get(rec, "lon")
	if lat == "" && lon == "" {
		return nil, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, t.errorf("lat %q: %v", lat, err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, t.errorf("lon %q: %v", lon, err)
	}
	return &model.GeoPoint{Lat: la, Lon: lo}, nil
}

func (t *table) optInt(rec []string, col string) (*int, error) {
	v := t.get(rec, col)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, t.errorf("%s %q: %v", col, v, err)
	}
	return &n, nil
}

func (t *table) errorf(format string, args ...any) error {
	return fmt.Errorf("csv line %d: %s", t.line, fmt.Sprintf(format, args...))
}

func ReadVehicles(r io.Reader) ([]model.VehicleIn, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	var out []model.VehicleIn
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		v := model.VehicleIn{ID: t.get(rec, "id"), Name: t.get(rec, "name")}
		if v.ID == "" {
			return nil, t.errorf("empty id")
		}
		if v.StartLocation, err = t.location(rec); err != nil {
			return nil, err
		}
		if v.Capacity, err = t.optInt(rec, "capacity"); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// ReadJobs groups rows by account in order of first appearance.
func ReadJobs(r io.Reader, defaultAccount string) ([]integrations.AccountJobs, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	var out []integrations.AccountJobs
	idx := map[string]int{}
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		j := model.JobIn{ID: t.get(rec, "id"), Name: t.get(rec, "name"), Kind: strings.ToLower(t.get(rec, "kind"))}
		if j.ID == "" {
			return nil, t.errorf("empty id")
		}
		if j.Location, err = t.location(rec); err != nil {
			return nil, err
		}
		if j.Demand, err = t.optInt(rec, "demand"); err != nil {
			return nil, err
		}
		account := t.get(rec, "account")
		if account == "" {
			account = defaultAccount
		}
		if account == "" {
			return nil, t.errorf("job %s has no account", j.ID)
		}
		i, ok := idx[account]
		if !ok {
			i = len(out)
			idx[account] = i
			out = append(out, integrations.AccountJobs{Account: account})
		}
		out[i].Jobs = append(out[i].Jobs, j)
	}
}
