// Package importer turns a pasted guest list into guest inputs. One guest
// per line; cells may be separated by tabs (spreadsheet copy), semicolons
// or commas.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"attendance/internal/models"
	"attendance/internal/state"
)

var ErrEmpty = errors.New("no guests found in input")

// Options control parsing. A zero Separator is detected from the text.
type Options struct {
	Separator rune
	Header    bool
}

// Parse reads text into guest inputs for an event with the given columns.
// Without columns the cells fill name, phone and email. With columns they
// fill the columns positionally, or by name when the first line is a header.
// A header cell named "status" is read as the guest status.
func Parse(text string, columns []string, opts Options) ([]state.GuestInput, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil, ErrEmpty
	}
	sep := opts.Separator
	if sep == 0 {
		sep = DetectSeparator(text)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var (
		targets []string
		out     []state.GuestInput
		line    int
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", line+1, err)
		}
		line++
		if blank(record) {
			continue
		}
		if opts.Header && targets == nil {
			targets = headerTargets(record, columns)
			continue
		}
		if targets == nil {
			targets = positionalTargets(columns)
		}
		in, err := toInput(record, targets, columns)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, in)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// DetectSeparator picks tab, then semicolon, then comma, by presence in the
// first line. Single-column text gets NoSeparator.
func DetectSeparator(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	for _, sep := range []rune{'\t', ';', ','} {
		if strings.ContainsRune(first, sep) {
			return sep
		}
	}
	return NoSeparator
}

// NoSeparator keeps each line as one cell. csv refuses '\n' as a delimiter.
const NoSeparator = '\x1f'

const (
	targetName   = "\x00name"
	targetPhone  = "\x00phone"
	targetEmail  = "\x00email"
	targetStatus = "\x00status"
)

func positionalTargets(columns []string) []string {
	if len(columns) == 0 {
		return []string{targetName, targetPhone, targetEmail}
	}
	return columns
}

func headerTargets(header, columns []string) []string {
	targets := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case strings.EqualFold(h, "status"):
			targets[i] = targetStatus
		case len(columns) == 0 && (strings.EqualFold(h, "name") || strings.EqualFold(h, "nome")):
			targets[i] = targetName
		case len(columns) == 0 && (strings.EqualFold(h, "phone") || strings.EqualFold(h, "telefone")):
			targets[i] = targetPhone
		case len(columns) == 0 && strings.EqualFold(h, "email"):
			targets[i] = targetEmail
		default:
			for _, c := range columns {
				if strings.EqualFold(c, h) {
					targets[i] = c
					break
				}
			}
		}
	}
	return targets
}

func toInput(record, targets, columns []string) (state.GuestInput, error) {
	in := state.GuestInput{}
	if len(columns) > 0 {
		in.Fields = make(map[string]string, len(columns))
	}
	for i, cell := range record {
		if i >= len(targets) {
			break
		}
		cell = strings.TrimSpace(cell)
		switch targets[i] {
		case "":
		case targetName:
			in.Name = cell
		case targetPhone:
			in.Phone = cell
		case targetEmail:
			in.Email = cell
		case targetStatus:
			status, err := models.ParseStatus(strings.ToLower(cell))
			if err != nil {
				return state.GuestInput{}, err
			}
			in.Status = status
		default:
			in.Fields[targets[i]] = cell
		}
	}
	return in, nil
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
