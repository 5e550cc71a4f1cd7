// Package tabledata reads and writes truth tables in the JSON interchange
// format: a top-level "TableData" array of {dff, inputPins, outputPin,
// table} records.
package tabledata

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pborges/galc/internal/dnf"
	"github.com/pkg/errors"
)

type record struct {
	Dff       bool   `json:"dff"`
	InputPins []int  `json:"inputPins"`
	OutputPin int    `json:"outputPin"`
	Table     []bool `json:"table"`
}

type file struct {
	TableData *[]record `json:"TableData"`
}

// Decode parses an interchange document.
func Decode(data []byte) ([]dnf.TruthTable, error) {
	var f file
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode table data")
	}
	if f.TableData == nil {
		return nil, errors.New("missing property TableData")
	}
	if len(*f.TableData) == 0 {
		return nil, errors.New("no TableData records found")
	}
	tables := make([]dnf.TruthTable, 0, len(*f.TableData))
	for i, r := range *f.TableData {
		if r.OutputPin <= 0 {
			return nil, errors.Errorf("TableData[%d]: invalid output pin %d", i, r.OutputPin)
		}
		for _, pin := range r.InputPins {
			if pin <= 0 {
				return nil, errors.Errorf("TableData[%d]: invalid input pin %d", i, pin)
			}
		}
		tables = append(tables, dnf.TruthTable{
			InputPins:  r.InputPins,
			OutputPin:  r.OutputPin,
			Table:      r.Table,
			Sequential: r.Dff,
		})
	}
	return tables, nil
}

// Encode renders tables as an indented interchange document.
func Encode(tables []dnf.TruthTable) ([]byte, error) {
	records := make([]record, len(tables))
	for i, t := range tables {
		records[i] = record{
			Dff:       t.Sequential,
			InputPins: nonNilInts(t.InputPins),
			OutputPin: t.OutputPin,
			Table:     nonNilBools(t.Table),
		}
	}
	data, err := json.MarshalIndent(file{TableData: &records}, "", "    ")
	if err != nil {
		return nil, errors.Wrap(err, "encode table data")
	}
	return append(data, '\n'), nil
}

// ReadFile decodes the interchange document at path.
func ReadFile(path string) ([]dnf.TruthTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tables, err := Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return tables, nil
}

// WriteFile encodes tables to path.
func WriteFile(path string, tables []dnf.TruthTable) error {
	data, err := Encode(tables)
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), path)
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilBools(v []bool) []bool {
	if v == nil {
		return []bool{}
	}
	return v
}
