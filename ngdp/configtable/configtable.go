/*
Copyright 2017 Luke Granger-Brown

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package configtable decodes the pipe-delimited, typed-column tables the
// patch service serves for its CDNs and versions endpoints.
package configtable

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
)

const (
	typeDelimiter   = "!"
	columnDelimiter = "|"
	widthDelimiter  = ":"

	structTag = "configtable"
)

// The column types known to this decoder. Width is parsed but not used: the
// decoded Go field's own type determines how a cell's text is interpreted,
// and a fixed-size byte array is aligned to its own length.
const (
	typeString = "string"
	typeHex    = "hex"
	typeDec    = "dec"
)

type column struct {
	name    string
	colType string
	width   int
}

// A Decoder reads a Blizzard config table from an input stream.
type Decoder struct {
	columns     []column
	columnNames map[string]int
	s           *bufio.Scanner
	err         error
}

// NewDecoder creates a new Decoder from the provided io.Reader.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		s: bufio.NewScanner(r),
	}
}

// line returns the next non-empty, non-comment line, trimmed. The patch
// service emits a "## seqn = <n>" line right after the header and blank
// lines are otherwise harmless; both are skipped here rather than by
// every caller.
func (d *Decoder) line() (string, error) {
	if d.err != nil {
		return "", d.err
	}
	for {
		if !d.s.Scan() {
			d.err = d.s.Err()
			if d.err == nil {
				d.err = io.EOF
			}
			return "", d.err
		}
		line := strings.TrimSpace(d.s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
}

func (d *Decoder) readHeader() error {
	if d.columns != nil {
		// already done, don't trigger twice
		return nil
	}

	headerLine, err := d.line()
	if err != nil {
		return err
	}
	fullHeaders := strings.Split(headerLine, columnDelimiter)

	columns := make([]column, len(fullHeaders))
	columnNames := make(map[string]int)
	for n, h := range fullHeaders {
		h = strings.TrimSpace(h)
		bits := strings.SplitN(h, typeDelimiter, 2)
		if len(bits) != 2 {
			d.err = fmt.Errorf("configtable: missing type delimiter in header %q", h)
			return d.err
		}

		typeBits := strings.SplitN(bits[1], widthDelimiter, 2)
		if len(typeBits) != 2 {
			d.err = fmt.Errorf("configtable: missing byte length in column type %q", bits[1])
			return d.err
		}
		colType := strings.ToLower(typeBits[0])
		switch colType {
		case typeString, typeHex, typeDec:
		default:
			d.err = fmt.Errorf("configtable: unsupported column type %q", typeBits[0])
			return d.err
		}

		width, err := strconv.Atoi(typeBits[1])
		if err != nil {
			d.err = fmt.Errorf("configtable: bad byte length %q: %w", typeBits[1], err)
			return d.err
		}

		columns[n] = column{
			name:    bits[0],
			colType: colType,
			width:   width,
		}

		if _, ok := columnNames[bits[0]]; ok {
			d.err = fmt.Errorf("configtable: duplicate column name %q", bits[0])
			return d.err
		}
		columnNames[bits[0]] = n
	}
	d.columns = columns
	d.columnNames = columnNames

	return nil
}

// Decode decodes a line from the config table into a provided struct.
//
// Exported fields are matched to columns by name, or by a `configtable:"name"`
// tag; a tag of the form `configtable:"name,delim"` overrides the delimiter
// used to split a []string field's value (the default is a space). String
// fields take the cell verbatim regardless of the column's declared type;
// []byte and fixed-size byte-array fields are hex-decoded (a byte array is
// right-aligned, zero-padded at the front, if the decoded value is shorter);
// integer fields are parsed as base-10.
func (d *Decoder) Decode(s interface{}) error {
	if err := d.readHeader(); err != nil {
		return err
	}

	if reflect.TypeOf(s).Kind() != reflect.Ptr {
		return fmt.Errorf("configtable: cannot decode into non-struct-pointer")
	}

	v := reflect.Indirect(reflect.ValueOf(s))
	st := v.Type()
	if !v.IsValid() || st.Kind() != reflect.Struct {
		return fmt.Errorf("configtable: cannot decode into non-struct-pointer")
	}

	columnToField := make(map[int]reflect.Value)
	columnDelimiters := make(map[int]string)
	fields := v.NumField()
	for n := 0; n < fields; n++ {
		f := st.Field(n)
		if f.PkgPath != "" {
			// unexported, skip since we won't be able to set it anyway.
			continue
		}
		columnName := f.Name
		var delim string

		if tag := f.Tag.Get(structTag); tag != "" {
			if strings.Contains(tag, ",") {
				bits := strings.SplitN(tag, ",", 2)
				columnName = bits[0]
				delim = bits[1]
			} else {
				columnName = tag
			}
		}

		columnID, ok := d.columnNames[columnName]
		if !ok {
			continue
		}

		if err := checkFieldKind(f.Type); err != nil {
			return err
		}

		columnToField[columnID] = v.Field(n)
		if delim != "" {
			columnDelimiters[columnID] = delim
		}
	}

	// Rows with fewer fields than the header declares are skipped rather
	// than treated as an error; real responses use this to insert
	// metadata lines (e.g. "## seqn = N") between valid rows.
	var bits []string
	for {
		ln, err := d.line()
		if err != nil {
			return err
		}
		bits = strings.Split(ln, columnDelimiter)
		for i := range bits {
			bits[i] = strings.TrimSpace(bits[i])
		}
		if len(bits) < len(d.columns) {
			continue
		}
		break
	}

	for n, cell := range bits {
		fv, ok := columnToField[n]
		if !ok {
			continue
		}
		delim := " "
		if dl, ok := columnDelimiters[n]; ok {
			delim = dl
		}
		if err := setField(fv, cell, delim); err != nil {
			return fmt.Errorf("configtable: column %q: %w", d.columns[n].name, err)
		}
	}

	return nil
}

func checkFieldKind(t reflect.Type) error {
	switch t.Kind() {
	case reflect.String:
		return nil
	case reflect.Slice:
		switch t.Elem().Kind() {
		case reflect.String, reflect.Uint8:
			return nil
		}
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	}
	return fmt.Errorf("configtable: cannot decode into field of type %s", t)
}

func setField(v reflect.Value, cell, delim string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(cell)
		return nil

	case reflect.Slice:
		switch v.Type().Elem().Kind() {
		case reflect.String:
			v.Set(reflect.ValueOf(strings.Split(cell, delim)))
			return nil
		case reflect.Uint8:
			b, err := hex.DecodeString(cell)
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}

	case reflect.Array:
		b, err := hex.DecodeString(cell)
		if err != nil {
			return err
		}
		padded := rightAlign(b, v.Len())
		reflect.Copy(v, reflect.ValueOf(padded))
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		width, _ := byteWidth(v.Kind())
		n, err := strconv.ParseInt(cell, 10, width*8)
		if err != nil {
			return err
		}
		v.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		width, _ := byteWidth(v.Kind())
		n, err := strconv.ParseUint(cell, 10, width*8)
		if err != nil {
			return err
		}
		v.SetUint(n)
		return nil
	}

	return fmt.Errorf("configtable: cannot decode into field of kind %s", v.Kind())
}

// rightAlign returns b truncated to, or zero-padded at the front to, exactly
// n bytes - the same big-endian-style alignment a fixed-width numeric field
// would get if the hex string were shorter than its declared width.
func rightAlign(b []byte, n int) []byte {
	if len(b) == n {
		return b
	}
	if len(b) > n {
		return b[len(b)-n:]
	}
	padded := make([]byte, n)
	copy(padded[n-len(b):], b)
	return padded
}

// byteWidth returns the width in bytes and signedness of a fixed-size
// integer Kind. It panics for any other Kind.
func byteWidth(k reflect.Kind) (width int, unsigned bool) {
	switch k {
	case reflect.Int8:
		return 1, false
	case reflect.Uint8:
		return 1, true
	case reflect.Int16:
		return 2, false
	case reflect.Uint16:
		return 2, true
	case reflect.Int32:
		return 4, false
	case reflect.Uint32:
		return 4, true
	case reflect.Int64:
		return 8, false
	case reflect.Uint64:
		return 8, true
	case reflect.Int:
		return 4, false
	case reflect.Uint:
		return 4, true
	}
	panic(fmt.Sprintf("configtable: byteWidth: unsupported kind %v", k))
}
